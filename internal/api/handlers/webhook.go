package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/KabirBatra18/valoquick-sub001/internal/billing"
	"github.com/KabirBatra18/valoquick-sub001/internal/core"
	"github.com/KabirBatra18/valoquick-sub001/internal/idempotency"
	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// Provider webhook event names.
const (
	eventSubscriptionCharged   = "subscription.charged"
	eventSubscriptionActivated = "subscription.activated"
	eventSubscriptionCancelled = "subscription.cancelled"
	eventSubscriptionHalted    = "subscription.halted"
	eventPaymentFailed         = "payment.failed"
)

// signatureHeader carries the webhook HMAC.
const signatureHeader = "X-Razorpay-Signature"

// maxWebhookBody bounds the raw payload read.
const maxWebhookBody = 1 << 20

// EventApplier is the slice of the billing engine the webhook intake needs.
type EventApplier interface {
	ApplyEvent(ctx context.Context, firmID string, ev billing.Event) error
}

// RawVerifier checks the webhook signature over the raw body bytes.
type RawVerifier interface {
	Verify(rawBody []byte, signature string) error
}

// --- Wire types ---

// webhookEnvelope is the provider's webhook payload shape. Only the fields
// the engine consumes are declared; everything else passes through
// unparsed.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription struct {
			Entity struct {
				ID         string            `json:"id"`
				Status     string            `json:"status"`
				CurrentEnd int64             `json:"current_end"`
				Quantity   int               `json:"quantity"`
				Notes      map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"subscription"`
		Payment struct {
			Entity struct {
				ID    string            `json:"id"`
				Notes map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// --- Handler ---

// WebhookHandler is the public intake for provider webhook deliveries.
// The provider authenticates via payload signature, not a bearer token, so
// these routes mount outside the auth middleware.
type WebhookHandler struct {
	applier  EventApplier
	verifier RawVerifier
	guard    *idempotency.Guard
	appTag   string
	logger   *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(applier EventApplier, verifier RawVerifier, guard *idempotency.Guard, appTag string, l *slog.Logger) *WebhookHandler {
	if l == nil {
		l = slog.Default()
	}
	return &WebhookHandler{
		applier:  applier,
		verifier: verifier,
		guard:    guard,
		appTag:   appTag,
		logger:   l,
	}
}

// RegisterRoutes mounts the webhook endpoint on the public router.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/razorpay", h.HandleWebhook)
}

// HandleWebhook processes one provider delivery. Order is load-bearing:
//
//  1. Signature verification over the raw bytes, before any JSON parse.
//  2. App-tag scoping: events for other applications on the shared
//     provider account are acknowledged and ignored.
//  3. Deduplication: the provider redelivers on non-2xx and timeout, so
//     replays short-circuit to 200 without re-mutating state.
//  4. State transition, then the key is recorded, then the 200 ack.
//
// A transition failure returns 5xx WITHOUT recording the key, so the
// provider's retry gets a clean attempt.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidJSON, "failed to read webhook body", err))
		return
	}

	if err := h.verifier.Verify(body, r.Header.Get(signatureHeader)); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeSignatureMismatch, "webhook signature verification failed", err))
		return
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed webhook payload", err))
		return
	}

	notes := env.Payload.Subscription.Entity.Notes
	if len(notes) == 0 {
		notes = env.Payload.Payment.Entity.Notes
	}
	if notes["app"] != h.appTag {
		// Shared provider account; not ours.
		core.JSON(w, r, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	firmID := notes["firm_id"]
	if firmID == "" {
		h.logger.WarnContext(r.Context(), "webhook has app tag but no firm linkage", "event", env.Event)
		core.JSON(w, r, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	subID := env.Payload.Subscription.Entity.ID
	payID := env.Payload.Payment.Entity.ID
	key := idempotency.WebhookKey(env.Event, subID, payID)
	if _, seen := h.guard.Seen(key); seen {
		core.JSON(w, r, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	ev, ok := h.buildEvent(env, notes)
	if !ok {
		core.JSON(w, r, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := h.applier.ApplyEvent(r.Context(), firmID, ev); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event application failed",
			"event", env.Event,
			"firm_id", firmID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	// Record before ack: if the ack is lost and the provider redelivers,
	// the replay must short-circuit.
	h.guard.Remember(key, idempotency.Result{Success: true})
	core.JSON(w, r, http.StatusOK, map[string]string{"status": "processed"})
}

// buildEvent maps a verified envelope onto a state-machine event. Unknown
// event names return ok=false and are acknowledged without action.
func (h *WebhookHandler) buildEvent(env webhookEnvelope, notes map[string]string) (billing.Event, bool) {
	var kind billing.EventKind
	switch env.Event {
	case eventSubscriptionCharged:
		kind = billing.EventCharged
	case eventSubscriptionActivated:
		kind = billing.EventActivated
	case eventSubscriptionCancelled:
		kind = billing.EventCancelled
	case eventSubscriptionHalted:
		kind = billing.EventHalted
	case eventPaymentFailed:
		kind = billing.EventPaymentFailed
	default:
		return billing.Event{}, false
	}

	scope := billing.ScopeBase
	if notes["type"] == "seats" {
		scope = billing.ScopeSeats
	}

	ev := billing.Event{
		Kind:                   kind,
		Scope:                  scope,
		Plan:                   types.Plan(notes["plan"]),
		ProviderSubscriptionID: env.Payload.Subscription.Entity.ID,
		ProviderPaymentID:      env.Payload.Payment.Entity.ID,
		SeatQuantity:           env.Payload.Subscription.Entity.Quantity,
	}
	if end := env.Payload.Subscription.Entity.CurrentEnd; end > 0 {
		t := time.Unix(end, 0).UTC()
		ev.PeriodEnd = &t
	}
	return ev, true
}
