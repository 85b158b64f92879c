// Package handlers contains the HTTP handler implementations for the
// ValoQuick billing API: subscription checkout and verification, seat
// purchase and reduction, trial gating, and the provider webhook intake.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/KabirBatra18/valoquick-sub001/internal/billing"
	"github.com/KabirBatra18/valoquick-sub001/internal/core"
	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// SubscriptionService is the billing engine contract the handler depends
// on. Defined locally so tests can mock it without touching the concrete
// service.
type SubscriptionService interface {
	Subscribe(ctx context.Context, firmID string, plan types.Plan) (*billing.SubscribeResult, error)
	VerifyPayment(ctx context.Context, firmID string, cb billing.PaymentCallback) (*billing.VerifyOutcome, error)
	GetSubscription(ctx context.Context, firmID string) (*billing.SubscriptionView, error)
	PreviewSeatCost(ctx context.Context, firmID string, additionalSeats int) (*billing.SeatPurchase, error)
	PurchaseSeats(ctx context.Context, firmID string, additionalSeats int) (*billing.SeatPurchase, error)
	VerifySeatPayment(ctx context.Context, firmID string, cb billing.SeatPaymentCallback) (*billing.VerifyOutcome, error)
	ScheduleSeatReduction(ctx context.Context, firmID string, newSeatCount int) (*billing.ReductionOutcome, error)
}

// --- Request models ---

// SubscribeRequest is the body for POST /v1/billing/subscribe.
type SubscribeRequest struct {
	Plan types.Plan `json:"plan" validate:"required,plan"`
}

// VerifyPaymentRequest is the body for POST /v1/billing/verify. Field names
// mirror the provider's checkout callback.
type VerifyPaymentRequest struct {
	RazorpayPaymentID      string     `json:"razorpay_payment_id" validate:"required"`
	RazorpaySubscriptionID string     `json:"razorpay_subscription_id" validate:"required"`
	RazorpaySignature      string     `json:"razorpay_signature" validate:"required"`
	Plan                   types.Plan `json:"plan" validate:"required,plan"`
}

// SeatCountRequest is the body for seat preview and purchase.
type SeatCountRequest struct {
	AdditionalSeats int `json:"additional_seats" validate:"required,min=1"`
}

// VerifySeatPaymentRequest is the body for POST /v1/billing/seats/verify.
type VerifySeatPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
	AdditionalSeats   int    `json:"additional_seats" validate:"required,min=1"`
}

// ReduceSeatsRequest is the body for PUT /v1/billing/seats.
type ReduceSeatsRequest struct {
	SeatCount *int `json:"seat_count" validate:"required,min=0"`
}

// --- Handler ---

// BillingHandler handles the subscription and seat endpoints.
type BillingHandler struct {
	service   SubscriptionService
	validator *core.Validator
	logger    *slog.Logger
}

// NewBillingHandler creates a BillingHandler.
func NewBillingHandler(svc SubscriptionService, v *core.Validator, l *slog.Logger) *BillingHandler {
	if l == nil {
		l = slog.Default()
	}
	return &BillingHandler{service: svc, validator: v, logger: l}
}

// RegisterRoutes mounts the billing endpoints. Purchase and reduction are
// owner-only; reads are open to any firm member.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/billing/subscription", h.GetSubscription)

	r.Group(func(r chi.Router) {
		r.Use(core.RequireMinRole(types.RoleOwner))
		r.Post("/billing/subscribe", h.Subscribe)
		r.Post("/billing/verify", h.VerifyPayment)
		r.Post("/billing/seats/preview", h.PreviewSeats)
		r.Post("/billing/seats", h.PurchaseSeats)
		r.Post("/billing/seats/verify", h.VerifySeatPayment)
		r.Put("/billing/seats", h.ReduceSeats)
	})
}

// Subscribe creates a provider subscription for checkout.
func (h *BillingHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	firmID, ok := types.GetFirmID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "firm context is required", nil))
		return
	}

	result, err := h.service.Subscribe(r.Context(), firmID, req.Plan)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, result)
}

// VerifyPayment validates the checkout callback and activates the
// subscription.
func (h *BillingHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req VerifyPaymentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	firmID, ok := types.GetFirmID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "firm context is required", nil))
		return
	}

	outcome, err := h.service.VerifyPayment(r.Context(), firmID, billing.PaymentCallback{
		PaymentID:      req.RazorpayPaymentID,
		SubscriptionID: req.RazorpaySubscriptionID,
		Signature:      req.RazorpaySignature,
		Plan:           req.Plan,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, outcome)
}

// GetSubscription returns the stored record plus derived validity.
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	firmID, ok := types.GetFirmID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "firm context is required", nil))
		return
	}

	view, err := h.service.GetSubscription(r.Context(), firmID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, view)
}

// PreviewSeats computes the seat-cost breakdown without side effects.
func (h *BillingHandler) PreviewSeats(w http.ResponseWriter, r *http.Request) {
	h.seatCostEndpoint(w, r, h.service.PreviewSeatCost)
}

// PurchaseSeats creates the provider order and seats subscription.
func (h *BillingHandler) PurchaseSeats(w http.ResponseWriter, r *http.Request) {
	h.seatCostEndpoint(w, r, h.service.PurchaseSeats)
}

func (h *BillingHandler) seatCostEndpoint(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, firmID string, additionalSeats int) (*billing.SeatPurchase, error),
) {
	var req SeatCountRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	firmID, ok := types.GetFirmID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "firm context is required", nil))
		return
	}

	result, err := fn(r.Context(), firmID, req.AdditionalSeats)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, result)
}

// VerifySeatPayment validates the seat-order callback and applies the
// purchased increase.
func (h *BillingHandler) VerifySeatPayment(w http.ResponseWriter, r *http.Request) {
	var req VerifySeatPaymentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	firmID, ok := types.GetFirmID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "firm context is required", nil))
		return
	}

	outcome, err := h.service.VerifySeatPayment(r.Context(), firmID, billing.SeatPaymentCallback{
		OrderID:         req.RazorpayOrderID,
		PaymentID:       req.RazorpayPaymentID,
		Signature:       req.RazorpaySignature,
		AdditionalSeats: req.AdditionalSeats,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, outcome)
}

// ReduceSeats schedules a purchased-seat decrease for the next renewal.
func (h *BillingHandler) ReduceSeats(w http.ResponseWriter, r *http.Request) {
	var req ReduceSeatsRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	firmID, ok := types.GetFirmID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "firm context is required", nil))
		return
	}

	outcome, err := h.service.ScheduleSeatReduction(r.Context(), firmID, *req.SeatCount)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, outcome)
}
