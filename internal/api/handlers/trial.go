package handlers

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/KabirBatra18/valoquick-sub001/internal/core"
	"github.com/KabirBatra18/valoquick-sub001/internal/trial"
	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// TrialService is the eligibility-engine contract the handler depends on.
type TrialService interface {
	CheckEligibility(ctx context.Context, in trial.CheckInput) (*types.TrialDecision, error)
	RecordActivation(ctx context.Context, in trial.CheckInput) (string, error)
}

// TrialCheckRequest is the body for POST /v1/trials/check.
type TrialCheckRequest struct {
	DeviceID           string `json:"device_id" validate:"required"`
	PersistentDeviceID string `json:"persistent_device_id,omitempty"`
	FirmID             string `json:"firm_id,omitempty"`
}

// TrialActivateRequest is the body for PUT /v1/trials/activate. The firm
// must already exist by activation time.
type TrialActivateRequest struct {
	DeviceID           string `json:"device_id" validate:"required"`
	PersistentDeviceID string `json:"persistent_device_id,omitempty"`
	FirmID             string `json:"firm_id" validate:"required"`
}

// TrialActivateResponse is the body returned by activation.
type TrialActivateResponse struct {
	Success  bool   `json:"success"`
	IPPrefix string `json:"ip_prefix"`
}

// TrialHandler handles trial eligibility checks and activation recording.
type TrialHandler struct {
	service   TrialService
	validator *core.Validator
	logger    *slog.Logger
}

// NewTrialHandler creates a TrialHandler.
func NewTrialHandler(svc TrialService, v *core.Validator, l *slog.Logger) *TrialHandler {
	if l == nil {
		l = slog.Default()
	}
	return &TrialHandler{service: svc, validator: v, logger: l}
}

// RegisterRoutes mounts the trial endpoints. Member-level access is enough;
// trial checks happen before a user has any standing in a firm.
func (h *TrialHandler) RegisterRoutes(r chi.Router) {
	r.Post("/trials/check", h.Check)
	r.Put("/trials/activate", h.Activate)
}

// Check runs the read-only eligibility decision.
func (h *TrialHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req TrialCheckRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	in, err := h.buildInput(r, req.DeviceID, req.PersistentDeviceID, req.FirmID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	decision, err := h.service.CheckEligibility(r.Context(), in)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, decision)
}

// Activate records the union-merge activation once a firm is chosen.
func (h *TrialHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req TrialActivateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	in, err := h.buildInput(r, req.DeviceID, req.PersistentDeviceID, req.FirmID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	prefix, err := h.service.RecordActivation(r.Context(), in)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, TrialActivateResponse{Success: true, IPPrefix: prefix})
}

func (h *TrialHandler) buildInput(r *http.Request, deviceID, persistentID, firmID string) (trial.CheckInput, error) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		return trial.CheckInput{}, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil)
	}

	// The caller's token decides the firm when the body omits it.
	if firmID == "" {
		firmID = actor.FirmID
	}

	return trial.CheckInput{
		DeviceID:           deviceID,
		PersistentDeviceID: persistentID,
		UserID:             actor.ID,
		FirmID:             firmID,
		RemoteIP:           clientIP(r),
	}, nil
}

// clientIP resolves the caller's address, preferring the first entry of
// X-Forwarded-For when a proxy sits in front.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
