package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for NATSBus
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns defaults for a local NATS server
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "lovesync.sessions",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSBus publishes on <prefix>.<sessionID> so every API instance sees every change
type NATSBus struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSBus connects to NATS
func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	opts := []nats.Option{
		nats.Name("love-sync-backend"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBus{nc: nc, prefix: cfg.SubjectPrefix}, nil
}

// Subject returns the subject a session's events are published on
func (b *NATSBus) Subject(sessionID string) string {
	return b.prefix + "." + sessionID
}

// Publish encodes ev as JSON and sends it
func (b *NATSBus) Publish(_ context.Context, ev SessionChanged) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}
	if err := b.nc.Publish(b.Subject(ev.SessionID), data); err != nil {
		return fmt.Errorf("failed to publish session event: %w", err)
	}
	return nil
}

// Subscribe listens on every session subject
func (b *NATSBus) Subscribe(h Handler) (func(), error) {
	sub, err := b.nc.Subscribe(b.prefix+".*", func(msg *nats.Msg) {
		var ev SessionChanged
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to decode session event")
			return
		}
		h(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to session events: %w", err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("Failed to unsubscribe from session events")
		}
	}, nil
}

// Close drains pending messages and closes the connection
func (b *NATSBus) Close() error {
	return b.nc.Drain()
}
