package notify

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildPayload(t *testing.T) {
	p := buildPayload(Message{
		Title: "Day 3 unlocked",
		Body:  "Chocolate Day is here",
		Data:  map[string]string{"day": "3"},
	})

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		APS struct {
			Alert struct {
				Title string `json:"title"`
				Body  string `json:"body"`
			} `json:"alert"`
			Sound string `json:"sound"`
		} `json:"aps"`
		Day string `json:"day"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.APS.Alert.Title != "Day 3 unlocked" || decoded.APS.Alert.Body != "Chocolate Day is here" {
		t.Errorf("alert = %+v", decoded.APS.Alert)
	}
	if decoded.Day != "3" {
		t.Errorf("custom key day = %q", decoded.Day)
	}
}

func TestNewAPNsMissingKey(t *testing.T) {
	_, err := NewAPNs(APNsConfig{KeyFile: filepath.Join(t.TempDir(), "missing.p8")})
	if err == nil || !strings.Contains(err.Error(), "auth key") {
		t.Fatalf("error = %v", err)
	}
}

func TestLogNotifier(t *testing.T) {
	if err := (LogNotifier{}).Notify(context.Background(), "abcdef0123456789", Message{Title: "hi"}); err != nil {
		t.Fatal(err)
	}
	if got := redact("abcdef0123456789"); got != "abcdef01…" {
		t.Errorf("redact = %q", got)
	}
}
