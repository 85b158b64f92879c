package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/KabirBatra18/valoquick-sub001/internal/core"
	"github.com/KabirBatra18/valoquick-sub001/internal/trial"
	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// Entitlements answers whether a firm holds a valid subscription right now.
type Entitlements interface {
	IsEntitled(ctx context.Context, firmID string) (bool, error)
}

// TrialConsumer increments the firm's metered trial counter, bounded by the
// free-report limit.
type TrialConsumer interface {
	ConsumeTrialReport(ctx context.Context, firmID string, limit int) (used int, allowed bool, err error)
}

// AuthorizeReportRequest is the body for POST /v1/reports/authorize.
type AuthorizeReportRequest struct {
	DeviceID           string `json:"device_id" validate:"required"`
	PersistentDeviceID string `json:"persistent_device_id,omitempty"`
}

// AuthorizeReportResponse tells the report generator whether to proceed and
// on whose budget.
type AuthorizeReportResponse struct {
	Authorized       bool   `json:"authorized"`
	Source           string `json:"source"` // "subscription" or "trial"
	TrialReportsUsed int    `json:"trial_reports_used,omitempty"`
	TrialReportsLeft int    `json:"trial_reports_left,omitempty"`
}

// ReportsHandler gates report generation: a valid subscription authorizes
// outright; otherwise the request runs the trial eligibility engine and
// consumes one metered free report.
type ReportsHandler struct {
	entitlements Entitlements
	trials       TrialService
	consumer     TrialConsumer
	freeReports  int
	validator    *core.Validator
	logger       *slog.Logger
}

// NewReportsHandler creates a ReportsHandler.
func NewReportsHandler(
	entitlements Entitlements,
	trials TrialService,
	consumer TrialConsumer,
	freeReports int,
	v *core.Validator,
	l *slog.Logger,
) *ReportsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ReportsHandler{
		entitlements: entitlements,
		trials:       trials,
		consumer:     consumer,
		freeReports:  freeReports,
		validator:    v,
		logger:       l,
	}
}

// RegisterRoutes mounts the report authorization gate.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/reports/authorize", h.Authorize)
}

// Authorize decides whether this report generation may proceed.
//
// A valid subscription short-circuits everything: no trial checks, no
// counter consumption. Without one the request must pass the eligibility
// engine (fail closed on errors) and then win the guarded counter
// increment.
func (h *ReportsHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req AuthorizeReportRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	actor, ok := types.GetActor(r.Context())
	if !ok || actor.FirmID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "firm context is required", nil))
		return
	}
	firmID := actor.FirmID

	entitled, err := h.entitlements.IsEntitled(r.Context(), firmID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if entitled {
		core.JSON(w, r, http.StatusOK, AuthorizeReportResponse{
			Authorized: true,
			Source:     "subscription",
		})
		return
	}

	decision, err := h.trials.CheckEligibility(r.Context(), trial.CheckInput{
		DeviceID:           req.DeviceID,
		PersistentDeviceID: req.PersistentDeviceID,
		UserID:             actor.ID,
		FirmID:             firmID,
		RemoteIP:           clientIP(r),
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !decision.Eligible {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeTrialBlocked,
			"free trial is not available for this device or network",
			nil,
			map[string]any{"reason": decision.Reason, "ip_prefix": decision.IPPrefix},
		))
		return
	}

	used, allowed, err := h.consumer.ConsumeTrialReport(r.Context(), firmID, h.freeReports)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !allowed {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeLimitTrialExhausted,
			"all free trial reports have been used",
			nil,
			map[string]any{"trial_reports_used": used, "limit": h.freeReports},
		))
		return
	}

	core.JSON(w, r, http.StatusOK, AuthorizeReportResponse{
		Authorized:       true,
		Source:           "trial",
		TrialReportsUsed: used,
		TrialReportsLeft: h.freeReports - used,
	})
}
