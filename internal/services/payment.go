package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"love-sync-backend/internal/metrics"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Gateway creates orders with a payment provider
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)
}

// RazorpayGateway talks to the Razorpay orders API with basic auth
type RazorpayGateway struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewRazorpayGateway creates a gateway client
func NewRazorpayGateway(baseURL, keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type razorpayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type razorpayOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateOrder posts a new order and returns its id
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	body, err := json.Marshal(razorpayOrderRequest{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create order request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out razorpayOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode order response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("payment gateway returned an order without id")
	}
	return out.ID, nil
}

// LocalGateway mints order ids without a provider, for development
type LocalGateway struct{}

func (LocalGateway) CreateOrder(_ context.Context, _ int64, _, _ string) (string, error) {
	return "order_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:14], nil
}

// PaymentConfig holds prices and the signing secret
type PaymentConfig struct {
	KeyID          string
	KeySecret      string
	Currency       string
	ProposalAmount int64
	CoupleAmount   int64
}

// CreateOrderRequest names what the payment unlocks
type CreateOrderRequest struct {
	Purpose  models.PaymentPurpose `json:"purpose"`
	TargetID string                `json:"target_id,omitempty"`
}

// OrderResponse is what the checkout widget needs
type OrderResponse struct {
	OrderID  string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id,omitempty"`
}

// VerifyRequest carries the gateway's checkout callback fields
type VerifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// VerifyResponse reports what the payment unlocked
type VerifyResponse struct {
	Purpose   models.PaymentPurpose `json:"purpose"`
	ShareLink string                `json:"shareLink,omitempty"`
	Session   *models.Session       `json:"session,omitempty"`
}

// PaymentService creates and verifies orders
type PaymentService struct {
	orders   repository.OrderStore
	pairs    repository.PairStore
	users    repository.UserStore
	sessions *SessionService
	gateway  Gateway
	metrics  metrics.Recorder
	clock    clockwork.Clock
	cfg      PaymentConfig
}

// NewPaymentService creates a payment service
func NewPaymentService(
	orders repository.OrderStore,
	pairs repository.PairStore,
	users repository.UserStore,
	sessionService *SessionService,
	gateway Gateway,
	recorder metrics.Recorder,
	clock clockwork.Clock,
	cfg PaymentConfig,
) *PaymentService {
	return &PaymentService{
		orders:   orders,
		pairs:    pairs,
		users:    users,
		sessions: sessionService,
		gateway:  gateway,
		metrics:  recorder,
		clock:    clock,
		cfg:      cfg,
	}
}

// CreateOrder validates the target and opens a gateway order for it
func (s *PaymentService) CreateOrder(ctx context.Context, viewer Viewer, req CreateOrderRequest) (*OrderResponse, error) {
	var (
		amount   int64
		targetID string
	)

	switch req.Purpose {
	case models.PurposeProposal:
		sess, err := s.sessions.Get(ctx, req.TargetID)
		if err != nil {
			return nil, err
		}
		if sess.Kind != models.KindProposal {
			return nil, models.ErrWrongKind
		}
		if sess.Unlocked {
			return nil, models.ErrAlreadyUnlocked
		}
		amount, targetID = s.cfg.ProposalAmount, sess.ID

	case models.PurposeCouple:
		if viewer.UserID == "" {
			return nil, models.ErrUserNotFound
		}
		pair, err := s.pairs.GetByUserID(ctx, viewer.UserID)
		if err != nil {
			return nil, err
		}
		if viewer.Role == models.RolePremiumCouple {
			return nil, models.ErrAlreadyUnlocked
		}
		amount, targetID = s.cfg.CoupleAmount, pair.ID

	default:
		return nil, models.ErrInvalidPurpose
	}

	orderID, err := s.gateway.CreateOrder(ctx, amount, s.cfg.Currency, string(req.Purpose)+"_"+targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	order := &models.PaymentOrder{
		ID:        orderID,
		Purpose:   req.Purpose,
		TargetID:  targetID,
		Amount:    amount,
		Currency:  s.cfg.Currency,
		Status:    models.OrderCreated,
		CreatedAt: s.clock.Now(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to store order: %w", err)
	}

	log.Info().
		Str("order_id", orderID).
		Str("purpose", string(req.Purpose)).
		Str("target_id", targetID).
		Int64("amount", amount).
		Msg("Payment order created")

	return &OrderResponse{OrderID: orderID, Amount: amount, Currency: s.cfg.Currency, KeyID: s.cfg.KeyID}, nil
}

// Sign computes the checkout signature for an order and payment
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// Verify checks the signature, marks the order paid and applies its effect. Replaying a verified
// payment re-applies the same idempotent effect.
func (s *PaymentService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	if req.OrderID == "" || req.PaymentID == "" || !VerifySignature(s.cfg.KeySecret, req.OrderID, req.PaymentID, req.Signature) {
		s.metrics.PaymentVerified("unknown", false)
		log.Warn().Str("order_id", req.OrderID).Msg("Payment signature mismatch")
		return nil, models.ErrInvalidSignature
	}

	order, paid, err := s.orders.MarkPaid(ctx, req.OrderID, req.PaymentID)
	if err != nil {
		return nil, err
	}
	s.metrics.PaymentVerified(string(order.Purpose), true)
	if !paid {
		log.Info().Str("order_id", order.ID).Msg("Payment already verified")
	}

	resp := &VerifyResponse{Purpose: order.Purpose}
	switch order.Purpose {
	case models.PurposeProposal:
		res, err := s.sessions.ConfirmPayment(ctx, order.TargetID, req.PaymentID)
		if err != nil {
			return nil, fmt.Errorf("failed to unlock proposal: %w", err)
		}
		resp.Session = res.Session
		resp.ShareLink = s.sessions.ShareLink(res.Session)

	case models.PurposeCouple:
		pair, err := s.pairs.GetByID(ctx, order.TargetID)
		if err != nil {
			return nil, fmt.Errorf("failed to load paid pair: %w", err)
		}
		if err := s.users.SetPaid(ctx, true, pair.UserAID, pair.UserBID); err != nil {
			return nil, fmt.Errorf("failed to grant premium: %w", err)
		}
	}

	log.Info().
		Str("order_id", order.ID).
		Str("purpose", string(order.Purpose)).
		Bool("first_verify", paid).
		Msg("Payment verified")
	return resp, nil
}
