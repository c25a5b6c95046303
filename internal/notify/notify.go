// Package notify delivers push notifications to partners' devices.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Message is one push notification
type Message struct {
	Title string
	Body  string
	// Data is merged into the payload as custom keys
	Data map[string]string
}

// Notifier sends a message to one device token
type Notifier interface {
	Notify(ctx context.Context, deviceToken string, msg Message) error
}

// APNsConfig holds the token-based auth settings
type APNsConfig struct {
	KeyFile    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

// APNs pushes through Apple's HTTP/2 provider API
type APNs struct {
	client *apns2.Client
	topic  string
}

// NewAPNs loads the .p8 signing key and builds a token client
func NewAPNs(cfg APNsConfig) (*APNs, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	tok := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	client := apns2.NewTokenClient(tok)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNs{client: client, topic: cfg.Topic}, nil
}

// Notify sends msg to deviceToken. A rejected notification is returned as an error carrying Apple's reason.
func (a *APNs) Notify(ctx context.Context, deviceToken string, msg Message) error {
	n := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       a.topic,
		Payload:     buildPayload(msg),
	}

	res, err := a.client.PushWithContext(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected with status %d: %s", res.StatusCode, res.Reason)
	}

	log.Debug().Str("apns_id", res.ApnsID).Msg("Push notification sent")
	return nil
}

func buildPayload(msg Message) *payload.Payload {
	p := payload.NewPayload().
		AlertTitle(msg.Title).
		AlertBody(msg.Body).
		Sound("default")
	for k, v := range msg.Data {
		p.Custom(k, v)
	}
	return p
}

// LogNotifier only logs. It stands in when APNs is not configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, deviceToken string, msg Message) error {
	log.Info().
		Str("device", redact(deviceToken)).
		Str("title", msg.Title).
		Str("body", msg.Body).
		Msg("Push notification (APNs disabled)")
	return nil
}

func redact(deviceToken string) string {
	if len(deviceToken) <= 8 {
		return deviceToken
	}
	return deviceToken[:8] + "…"
}
