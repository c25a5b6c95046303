package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"love-sync-backend/internal/middleware"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub            *services.WSHub
	userService    *services.UserService
	pairService    *services.PairService
	sessionService *services.SessionService
	upgrader       websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler. An empty origin list or "*" allows any origin.
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	pairService *services.PairService,
	sessionService *services.SessionService,
	allowedOrigins []string,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		userService:    userService,
		pairService:    pairService,
		sessionService: sessionService,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[u.Scheme+"://"+u.Host]
	}
}

// HandleWebSocket handles GET /ws. Guests may connect without a token to watch sessions.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var userID string
	if token := r.URL.Query().Get("token"); token != "" {
		id, err := middleware.ValidateWebSocketToken(token, h.userService)
		if err != nil {
			respondError(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID = id
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := h.hub.Register(userID, conn)
	defer h.hub.Unregister(client)

	// the request context ends with the handler, so presence updates use their own
	ctx := context.Background()
	if userID != "" {
		h.sendPairStatus(ctx, client)
		h.hub.Presence(ctx, userID, true)
		defer h.hub.Presence(ctx, userID, false)
	}

	log.Info().Str("user_id", userID).Str("client_id", client.ID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Debug().Err(err).Str("client_id", client.ID).Msg("Failed to parse WebSocket message")
			h.sendError(client, "Invalid message format")
			continue
		}

		if err := h.handleMessage(ctx, client, msg); err != nil {
			log.Warn().Err(err).Str("client_id", client.ID).Str("type", msg.Type).Msg("Failed to handle message")
		}
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(ctx context.Context, client *services.WSClient, msg services.WSMessage) error {
	switch msg.Type {
	case "subscribe":
		return h.handleSubscribe(ctx, client, msg)
	case "unsubscribe":
		h.hub.Unsubscribe(client, msg.SessionID)
		return nil
	case "nudge":
		if client.UserID == "" {
			return h.sendError(client, "Sign in to nudge your partner")
		}
		return h.hub.Nudge(ctx, client.UserID, msg.Timestamp)
	case "ping":
		return client.Send(services.WSMessage{Type: "pong", Timestamp: time.Now().UnixMilli()})
	default:
		return h.sendError(client, "Unknown message type")
	}
}

// handleSubscribe starts watching a session and replies with its current state
func (h *WebSocketHandler) handleSubscribe(ctx context.Context, client *services.WSClient, msg services.WSMessage) error {
	if msg.SessionID == "" {
		return h.sendError(client, "session_id is required")
	}

	sess, err := h.sessionService.Get(ctx, msg.SessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return h.sendError(client, models.ErrSessionNotFound.Error())
		}
		return err
	}

	h.hub.Subscribe(client, sess.ID)
	return client.Send(services.WSMessage{
		Type:      "session_updated",
		SessionID: sess.ID,
		Timestamp: time.Now().UnixMilli(),
		Data:      sess,
	})
}

func (h *WebSocketHandler) sendPairStatus(ctx context.Context, client *services.WSClient) {
	data := map[string]interface{}{"has_pair": false}
	if pair, err := h.pairService.GetPairByUserID(ctx, client.UserID); err == nil {
		partnerID := pair.PartnerOf(client.UserID)
		data = map[string]interface{}{
			"has_pair":       true,
			"pair_id":        pair.ID,
			"partner_online": h.hub.IsOnline(partnerID),
		}
	}
	if err := client.Send(services.WSMessage{Type: "pair_status", Data: data}); err != nil {
		log.Error().
			Err(err).
			Str("user_id", client.UserID).
			Msg("Failed to send pair_status message")
	}
}

// sendError sends an error message to one socket
func (h *WebSocketHandler) sendError(client *services.WSClient, message string) error {
	return client.Send(services.WSMessage{
		Type:    "error",
		Message: message,
	})
}
