package main

import "love-sync-backend/cmd"

func main() {
	cmd.Run()
}
