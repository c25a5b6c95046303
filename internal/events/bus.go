// Package events fans session changes out to realtime subscribers.
package events

import (
	"context"
	"sync"
	"time"

	"love-sync-backend/internal/models"
)

// SessionChanged is published after every applied session transition
type SessionChanged struct {
	SessionID string               `json:"sessionId"`
	Kind      models.SessionKind   `json:"kind"`
	Status    models.SessionStatus `json:"status"`
	Version   int64                `json:"version"`
	Session   *models.Session      `json:"session"`
	At        time.Time            `json:"at"`
}

// Handler receives published events. It must not block for long.
type Handler func(SessionChanged)

// Bus publishes session changes and delivers them to subscribers
type Bus interface {
	Publish(ctx context.Context, ev SessionChanged) error
	Subscribe(h Handler) (unsubscribe func(), err error)
	Close() error
}

// LocalBus delivers events synchronously inside one process
type LocalBus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
}

// NewLocalBus creates an in-process bus
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]Handler)}
}

// Publish calls every subscriber in turn
func (b *LocalBus) Publish(_ context.Context, ev SessionChanged) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

// Subscribe registers h until the returned func is called
func (b *LocalBus) Subscribe(h Handler) (func(), error) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}, nil
}

// Close drops every subscriber
func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.handlers = make(map[int]Handler)
	b.mu.Unlock()
	return nil
}
