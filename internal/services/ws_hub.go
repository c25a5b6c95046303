package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"love-sync-backend/internal/events"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

// WSMessage represents a WebSocket message in either direction
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	PhotoID   string      `json:"photo_id,omitempty"`
	S3URL     string      `json:"s3_url,omitempty"`
	Online    *bool       `json:"online,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// WSClient is one socket. UserID is empty for guests, who may still watch sessions.
type WSClient struct {
	ID     string
	UserID string

	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Send writes one message. gorilla connections allow a single concurrent writer.
func (c *WSClient) Send(message WSMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// WSHub tracks sockets by user and by watched session
type WSHub struct {
	mu            sync.RWMutex
	users         map[string]*WSClient
	subscriptions map[string]map[*WSClient]bool
	watching      map[*WSClient]map[string]bool
	pairService   *PairService
	unsubscribe   func()
}

// NewWSHub creates a new WebSocket hub
func NewWSHub(pairService *PairService) *WSHub {
	return &WSHub{
		users:         make(map[string]*WSClient),
		subscriptions: make(map[string]map[*WSClient]bool),
		watching:      make(map[*WSClient]map[string]bool),
		pairService:   pairService,
	}
}

// Listen forwards every session change on bus to the sockets watching it
func (h *WSHub) Listen(bus events.Bus) error {
	unsubscribe, err := bus.Subscribe(h.HandleSessionChanged)
	if err != nil {
		return err
	}
	h.unsubscribe = unsubscribe
	return nil
}

// Close stops listening and closes every socket
func (h *WSHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
	for c := range h.watching {
		c.conn.Close()
	}
}

// Register adds a connection. A newer socket for the same user replaces the older one.
func (h *WSHub) Register(userID string, conn *websocket.Conn) *WSClient {
	c := &WSClient{ID: uuid.New().String(), UserID: userID, conn: conn}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.watching[c] = make(map[string]bool)
	if userID != "" {
		if existing, ok := h.users[userID]; ok {
			existing.conn.Close()
		}
		h.users[userID] = c
	}

	log.Info().Str("user_id", userID).Str("client_id", c.ID).Msg("WebSocket connection registered")
	return c
}

// Unregister removes a connection and every session subscription it held
func (h *WSHub) Unregister(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID := range h.watching[c] {
		h.removeSubscriber(sessionID, c)
	}
	delete(h.watching, c)

	if c.UserID != "" && h.users[c.UserID] == c {
		delete(h.users, c.UserID)
	}
	c.conn.Close()
	log.Info().Str("user_id", c.UserID).Str("client_id", c.ID).Msg("WebSocket connection unregistered")
}

// Subscribe starts pushing updates of sessionID to c
func (h *WSHub) Subscribe(c *WSClient, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	watched, ok := h.watching[c]
	if !ok {
		return
	}
	watched[sessionID] = true
	subs, ok := h.subscriptions[sessionID]
	if !ok {
		subs = make(map[*WSClient]bool)
		h.subscriptions[sessionID] = subs
	}
	subs[c] = true
}

// Unsubscribe stops pushing updates of sessionID to c
func (h *WSHub) Unsubscribe(c *WSClient, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if watched, ok := h.watching[c]; ok {
		delete(watched, sessionID)
	}
	h.removeSubscriber(sessionID, c)
}

func (h *WSHub) removeSubscriber(sessionID string, c *WSClient) {
	subs, ok := h.subscriptions[sessionID]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.subscriptions, sessionID)
	}
}

// Subscribers returns how many sockets watch sessionID
func (h *WSHub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[sessionID])
}

// HandleSessionChanged pushes a session_updated message to every watcher
func (h *WSHub) HandleSessionChanged(ev events.SessionChanged) {
	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.subscriptions[ev.SessionID]))
	for c := range h.subscriptions[ev.SessionID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	msg := WSMessage{
		Type:      "session_updated",
		SessionID: ev.SessionID,
		Timestamp: ev.At.UnixMilli(),
		Data:      ev.Session,
	}
	for _, c := range targets {
		if err := c.Send(msg); err != nil {
			log.Warn().Err(err).Str("client_id", c.ID).Str("session_id", ev.SessionID).Msg("Failed to push session update")
		}
	}
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	c, exists := h.users[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}
	if err := c.Send(message); err != nil {
		h.Unregister(c)
		return err
	}
	return nil
}

// IsOnline checks if a user has a live socket
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.users[userID]
	return exists
}

// Nudge sends a heart from a user to their partner
func (h *WSHub) Nudge(ctx context.Context, fromID string, timestamp int64) error {
	partnerID := h.pairService.PartnerID(ctx, fromID)
	if partnerID == "" {
		return h.SendToUser(fromID, WSMessage{Type: "error", Message: "You are not paired"})
	}
	if !h.IsOnline(partnerID) {
		return h.SendToUser(fromID, WSMessage{Type: "error", Message: "Partner is offline"})
	}
	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}

	if err := h.SendToUser(partnerID, WSMessage{Type: "nudge", Timestamp: timestamp}); err != nil {
		log.Error().Err(err).Str("user_id", partnerID).Msg("Failed to deliver nudge")
		return err
	}

	log.Info().
		Str("from_id", fromID).
		Str("partner_id", partnerID).
		Msg("Nudge sent")
	return nil
}

// Presence tells userID's partner whether userID is online
func (h *WSHub) Presence(ctx context.Context, userID string, online bool) {
	if userID == "" {
		return
	}
	h.NotifyPartnerStatus(h.pairService.PartnerID(ctx, userID), online)
}

// NotifyPartnerStatus sends a partner_status message if partnerID is connected
func (h *WSHub) NotifyPartnerStatus(partnerID string, online bool) {
	if partnerID == "" || !h.IsOnline(partnerID) {
		return
	}
	message := WSMessage{
		Type:   "partner_status",
		Online: &online,
	}
	if err := h.SendToUser(partnerID, message); err != nil {
		log.Error().Err(err).Str("user_id", partnerID).Msg("Failed to notify partner status")
	}
}

// NotifyPairCreated tells a user they were paired
func (h *WSHub) NotifyPairCreated(userID, pairID, userAID, userBID string, createdAt time.Time) error {
	message := WSMessage{
		Type: "pair_created",
		Data: map[string]interface{}{
			"pair_id":    pairID,
			"user_a_id":  userAID,
			"user_b_id":  userBID,
			"created_at": createdAt,
		},
	}
	return h.SendToUser(userID, message)
}

// NotifyPairDeleted tells a user their pair is gone
func (h *WSHub) NotifyPairDeleted(userID string) error {
	return h.SendToUser(userID, WSMessage{Type: "pair_deleted"})
}

// NotifyPhotoAdded tells the partner a new memory was uploaded
func (h *WSHub) NotifyPhotoAdded(partnerID, photoID, s3URL string) error {
	return h.SendToUser(partnerID, WSMessage{Type: "photo_added", PhotoID: photoID, S3URL: s3URL})
}
