package handlers

import (
	"net/http"

	"love-sync-backend/internal/middleware"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// PaymentHandler handles checkout orders and their verification
type PaymentHandler struct {
	paymentService *services.PaymentService
	wsHub          *services.WSHub
	pairService    *services.PairService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService, pairService *services.PairService, wsHub *services.WSHub) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		pairService:    pairService,
		wsHub:          wsHub,
	}
}

// CreateOrder handles POST /api/v1/payment/orders
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer := middleware.GetViewer(ctx)

	var req services.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.paymentService.CreateOrder(ctx, viewer, req)
	if err != nil {
		respondServiceError(w, err, "Failed to create order")
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// Verify handles POST /api/v1/payment/verify
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		respondError(w, "razorpay_order_id, razorpay_payment_id and razorpay_signature are required", http.StatusBadRequest)
		return
	}

	resp, err := h.paymentService.Verify(ctx, req)
	if err != nil {
		respondServiceError(w, err, "Failed to verify payment")
		return
	}

	if userID := middleware.GetUserID(ctx); userID != "" && resp.Purpose == models.PurposeCouple {
		h.notifyPremium(r, userID)
	}

	respondJSON(w, http.StatusOK, resp)
}

// notifyPremium tells both partners, if connected, that premium is active
func (h *PaymentHandler) notifyPremium(r *http.Request, userID string) {
	msg := services.WSMessage{Type: "premium_unlocked"}
	for _, id := range []string{userID, h.pairService.PartnerID(r.Context(), userID)} {
		if id == "" || !h.wsHub.IsOnline(id) {
			continue
		}
		if err := h.wsHub.SendToUser(id, msg); err != nil {
			log.Error().Err(err).Str("user_id", id).Msg("Failed to notify premium unlock")
		}
	}
}
