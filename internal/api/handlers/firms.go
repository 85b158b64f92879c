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

// FirmOnboarding is the signup contract the handler depends on.
type FirmOnboarding interface {
	RegisterFirm(ctx context.Context, in billing.RegisterFirmInput) (*types.Firm, error)
}

// CreateFirmRequest is the body for POST /v1/firms. ReferralCode is the
// referring firm's shareable code, present when signup came through a
// referral link.
type CreateFirmRequest struct {
	Name         string `json:"name" validate:"required"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// FirmsHandler handles firm signup.
type FirmsHandler struct {
	onboarding FirmOnboarding
	validator  *core.Validator
	logger     *slog.Logger
}

// NewFirmsHandler creates a FirmsHandler.
func NewFirmsHandler(o FirmOnboarding, v *core.Validator, l *slog.Logger) *FirmsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &FirmsHandler{onboarding: o, validator: v, logger: l}
}

// RegisterRoutes mounts the firm endpoints. Any authenticated user may
// create a firm; they have no firm role to check yet.
func (h *FirmsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/firms", h.Create)
}

// Create registers a new firm owned by the caller.
func (h *FirmsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFirmRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	firm, err := h.onboarding.RegisterFirm(r.Context(), billing.RegisterFirmInput{
		Name:         req.Name,
		OwnerID:      actor.ID,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, firm)
}
