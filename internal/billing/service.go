package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/KabirBatra18/valoquick-sub001/internal/idempotency"
	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// ReferralBonus is the one-time period extension granted to both parties of
// a referral on the referee's first successful subscription payment.
const ReferralBonus = 30 * 24 * time.Hour

// Config holds the service tunables sourced from BillingConfig.
type Config struct {
	AppTag      string
	KeyID       string
	SeatCeiling int
}

// Service is the billing engine orchestrator. Both the direct
// payment-verification path and the webhook path funnel into ApplyEvent,
// the single transition function over the explicit Event variants.
type Service struct {
	subs      SubscriptionRepository
	firms     FirmReader
	referrals ReferralRepository
	provider  ProviderGateway
	verifier  PaymentVerifier
	guard     *idempotency.Guard
	notifier  Notifier
	clock     types.Clock
	cfg       Config
	logger    *slog.Logger
}

// NewService creates the billing Service.
func NewService(
	subs SubscriptionRepository,
	firms FirmReader,
	referrals ReferralRepository,
	provider ProviderGateway,
	verifier PaymentVerifier,
	guard *idempotency.Guard,
	notifier Notifier,
	clock types.Clock,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		subs:      subs,
		firms:     firms,
		referrals: referrals,
		provider:  provider,
		verifier:  verifier,
		guard:     guard,
		notifier:  notifier,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// notes builds the provider metadata for outbound orders/subscriptions.
// The app tag scopes webhooks back to this application; the provider
// account may be shared with unrelated ones.
func (s *Service) notes(firmID, scope string) map[string]string {
	return map[string]string{
		"app":     s.cfg.AppTag,
		"firm_id": firmID,
		"type":    scope,
	}
}

// ---------------------------------------------------------------------------
// Subscribe + direct payment verification
// ---------------------------------------------------------------------------

// SubscribeResult is returned to the client to complete provider checkout.
type SubscribeResult struct {
	ProviderSubscriptionID string `json:"provider_subscription_id"`
	KeyID                  string `json:"key_id"`
	ShortURL               string `json:"short_url,omitempty"`
}

// Subscribe creates a provider subscription for the firm's chosen plan.
// No local state changes until the payment is verified.
func (s *Service) Subscribe(ctx context.Context, firmID string, plan types.Plan) (*SubscribeResult, error) {
	pricing, ok := PricingFor(plan)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPlan, "unsupported plan: "+string(plan), nil)
	}

	if _, err := s.firms.GetByID(ctx, firmID); err != nil {
		return nil, err
	}

	notes := s.notes(firmID, "base")
	notes["plan"] = string(plan)
	sub, err := s.provider.CreateSubscription(ctx, SubscriptionRequest{
		PlanID:   pricing.ProviderPlanID,
		Quantity: 1,
		Notes:    notes,
	})
	if err != nil {
		return nil, err
	}

	return &SubscribeResult{
		ProviderSubscriptionID: sub.ID,
		KeyID:                  s.cfg.KeyID,
		ShortURL:               sub.ShortURL,
	}, nil
}

// PaymentCallback carries the client-relayed provider callback fields for a
// subscription payment.
type PaymentCallback struct {
	PaymentID      string
	SubscriptionID string
	Signature      string
	Plan           types.Plan
}

// VerifyOutcome is the result of an idempotent payment verification.
type VerifyOutcome struct {
	Success   bool `json:"success"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// VerifyPayment validates a client-relayed subscription payment callback and
// applies the activation transition exactly once.
//
// Order matters: dedup lookup first (a replay must not re-verify or
// re-mutate), then signature verification, then the state transition.
// Failed verifications are recorded under the same key so retry storms
// cannot re-trigger the expensive path; replays of a failed key surface as
// "already handled" rather than re-running the original failure.
func (s *Service) VerifyPayment(ctx context.Context, firmID string, cb PaymentCallback) (*VerifyOutcome, error) {
	if !cb.Plan.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPlan, "unsupported plan: "+string(cb.Plan), nil)
	}

	key := idempotency.PaymentKey(cb.PaymentID, cb.SubscriptionID)
	if prev, ok := s.guard.Seen(key); ok {
		return &VerifyOutcome{Success: prev.Success, Duplicate: true}, nil
	}

	if err := s.verifier.VerifySubscription(cb.PaymentID, cb.SubscriptionID, cb.Signature); err != nil {
		s.guard.Remember(key, idempotency.Result{Success: false, Code: string(types.ErrCodeSignatureMismatch)})
		return nil, types.NewAppError(types.ErrCodeSignatureMismatch, "payment signature verification failed", err)
	}

	ev := Event{
		Kind:                   EventCharged,
		Scope:                  ScopeBase,
		Plan:                   cb.Plan,
		ProviderSubscriptionID: cb.SubscriptionID,
		ProviderPaymentID:      cb.PaymentID,
	}
	if err := s.ApplyEvent(ctx, firmID, ev); err != nil {
		return nil, err
	}

	s.guard.Remember(key, idempotency.Result{Success: true})

	// Referral rewards trigger only on direct verification, never on
	// webhook renewals, so repeat cycles cannot re-grant the bonus.
	s.processReferral(ctx, firmID)

	return &VerifyOutcome{Success: true}, nil
}

// ---------------------------------------------------------------------------
// Seat purchase and verification
// ---------------------------------------------------------------------------

// SeatPurchase is the outcome of initiating a seat purchase.
type SeatPurchase struct {
	Cost                   SeatCost `json:"cost"`
	OrderID                string   `json:"order_id,omitempty"`
	SeatsSubscriptionID    string   `json:"seats_subscription_id"`
	AppliedWithoutPayment  bool     `json:"applied_without_payment,omitempty"`
	TotalProRatedFormatted string   `json:"total_pro_rated_formatted"`
	RecurringFormatted     string   `json:"recurring_formatted"`
}

// PreviewSeatCost computes the seat-cost breakdown without side effects.
func (s *Service) PreviewSeatCost(ctx context.Context, firmID string, additionalSeats int) (*SeatPurchase, error) {
	sub, err := s.requireValidSubscription(ctx, firmID)
	if err != nil {
		return nil, err
	}

	cost, err := s.seatCost(sub, additionalSeats)
	if err != nil {
		return nil, err
	}

	return &SeatPurchase{
		Cost:                   cost,
		TotalProRatedFormatted: FormatAmount(cost.TotalProRated),
		RecurringFormatted:     FormatAmount(cost.RecurringAmount),
	}, nil
}

// PurchaseSeats creates the provider-side artifacts for adding seats: the
// recurring seats subscription (created or quantity-bumped) and a one-time
// order for the pro-rated remainder of the current cycle. Local seat counts
// change only after the order payment is verified, except when nothing is
// owed now, in which case the update applies immediately.
func (s *Service) PurchaseSeats(ctx context.Context, firmID string, additionalSeats int) (*SeatPurchase, error) {
	sub, err := s.requireValidSubscription(ctx, firmID)
	if err != nil {
		return nil, err
	}

	cost, err := s.seatCost(sub, additionalSeats)
	if err != nil {
		return nil, err
	}

	pricing, _ := PricingFor(sub.Plan)
	newPurchased := sub.Seats.Purchased + additionalSeats

	// Provider first, local state second: never record entitlement the
	// provider has not accepted.
	seatsSubID := sub.Seats.ProviderSubscriptionID
	if seatsSubID == "" {
		created, err := s.provider.CreateSubscription(ctx, SubscriptionRequest{
			PlanID:   pricing.ProviderSeatPlanID,
			Quantity: newPurchased,
			Notes:    s.notes(firmID, "seats"),
		})
		if err != nil {
			return nil, err
		}
		seatsSubID = created.ID
	} else {
		if err := s.provider.UpdateSubscriptionQuantity(ctx, seatsSubID, newPurchased); err != nil {
			return nil, err
		}
	}

	result := &SeatPurchase{
		Cost:                   cost,
		SeatsSubscriptionID:    seatsSubID,
		TotalProRatedFormatted: FormatAmount(cost.TotalProRated),
		RecurringFormatted:     FormatAmount(cost.RecurringAmount),
	}

	if cost.TotalProRated == 0 {
		// Nothing owed now; the recurring quantity is already in place at
		// the provider, so reflect the seats locally right away.
		if err := s.subs.UpdateSeats(ctx, firmID, SeatUpdate{
			Purchased:              newPurchased,
			ProviderSubscriptionID: seatsSubID,
			PeriodEnd:              sub.CurrentPeriodEnd,
			Status:                 types.SeatStatusActive,
		}); err != nil {
			return nil, err
		}
		result.AppliedWithoutPayment = true
		return result, nil
	}

	order, err := s.provider.CreateOrder(ctx, cost.TotalProRated,
		fmt.Sprintf("seats_%s_%s", firmID, uuid.New().String()[:8]),
		s.notes(firmID, "seats"))
	if err != nil {
		return nil, err
	}
	result.OrderID = order.ID
	return result, nil
}

// SeatPaymentCallback carries the client-relayed callback for a one-time
// seat purchase order.
type SeatPaymentCallback struct {
	OrderID         string
	PaymentID       string
	Signature       string
	AdditionalSeats int
}

// VerifySeatPayment validates the pro-rated seat order payment and applies
// the purchased-seat increase exactly once.
func (s *Service) VerifySeatPayment(ctx context.Context, firmID string, cb SeatPaymentCallback) (*VerifyOutcome, error) {
	if cb.AdditionalSeats <= 0 {
		return nil, types.NewAppError(types.ErrCodeValidationSeatCount, "additional_seats must be a positive integer", nil)
	}

	key := idempotency.OrderKey(cb.OrderID, cb.PaymentID)
	if prev, ok := s.guard.Seen(key); ok {
		return &VerifyOutcome{Success: prev.Success, Duplicate: true}, nil
	}

	if err := s.verifier.VerifyOrder(cb.OrderID, cb.PaymentID, cb.Signature); err != nil {
		s.guard.Remember(key, idempotency.Result{Success: false, Code: string(types.ErrCodeSignatureMismatch)})
		return nil, types.NewAppError(types.ErrCodeSignatureMismatch, "payment signature verification failed", err)
	}

	sub, err := s.subs.Get(ctx, firmID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "no subscription for firm", nil)
	}

	periodEnd := sub.Seats.PeriodEnd
	if periodEnd == nil {
		periodEnd = sub.CurrentPeriodEnd
	}
	if err := s.subs.UpdateSeats(ctx, firmID, SeatUpdate{
		Purchased: sub.Seats.Purchased + cb.AdditionalSeats,
		PeriodEnd: periodEnd,
		Status:    types.SeatStatusActive,
	}); err != nil {
		return nil, err
	}

	s.guard.Remember(key, idempotency.Result{Success: true})
	return &VerifyOutcome{Success: true}, nil
}

// ---------------------------------------------------------------------------
// Seat reduction scheduling
// ---------------------------------------------------------------------------

// ReductionOutcome reports what a seat-reduction request did.
type ReductionOutcome struct {
	Scheduled bool       `json:"scheduled"`
	Cleared   bool       `json:"cleared,omitempty"`
	Target    int        `json:"target,omitempty"`
	Effective *time.Time `json:"effective_at,omitempty"`
}

// ScheduleSeatReduction defers a purchased-seat decrease to the next seats
// renewal. Increases or no-op requests clear any pending reduction
// immediately and synchronously. Requests that would leave fewer total
// seats than active members are rejected with the exact overage.
func (s *Service) ScheduleSeatReduction(ctx context.Context, firmID string, newSeatCount int) (*ReductionOutcome, error) {
	if newSeatCount < 0 {
		return nil, types.NewAppError(types.ErrCodeValidationSeatCount, "seat count must not be negative", nil)
	}

	sub, err := s.subs.Get(ctx, firmID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.Seats.ProviderSubscriptionID == "" {
		return nil, types.NewAppError(types.ErrCodeConflictSubscriptionState, "firm has no seats subscription", nil)
	}

	members, err := s.firms.CountActiveMembers(ctx, firmID)
	if err != nil {
		return nil, err
	}
	if newSeatCount+types.IncludedSeats < members {
		overage := members - (newSeatCount + types.IncludedSeats)
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeConflictSeatsBelowMembers,
			fmt.Sprintf("remove %d member(s) before reducing seats", overage),
			nil,
			map[string]any{
				"active_members":    members,
				"requested_total":   newSeatCount + types.IncludedSeats,
				"members_to_remove": overage,
			},
		)
	}

	if newSeatCount >= sub.Seats.Purchased {
		if err := s.subs.ClearPendingReduction(ctx, firmID); err != nil {
			return nil, err
		}
		return &ReductionOutcome{Cleared: true}, nil
	}

	if err := s.subs.SetPendingReduction(ctx, firmID, newSeatCount); err != nil {
		return nil, err
	}
	return &ReductionOutcome{
		Scheduled: true,
		Target:    newSeatCount,
		Effective: sub.Seats.PeriodEnd,
	}, nil
}

// ---------------------------------------------------------------------------
// The transition function
// ---------------------------------------------------------------------------

// ApplyEvent applies a verified billing event to the firm's subscription
// record. It is the single transition function shared by the direct
// verification path and the webhook path; every branch is a targeted
// "set to X" so duplicate and reordered deliveries converge.
func (s *Service) ApplyEvent(ctx context.Context, firmID string, ev Event) error {
	if ev.Scope == ScopeSeats {
		return s.applySeatsEvent(ctx, firmID, ev)
	}
	return s.applyBaseEvent(ctx, firmID, ev)
}

func (s *Service) applyBaseEvent(ctx context.Context, firmID string, ev Event) error {
	now := s.clock.Now()

	switch ev.Kind {
	case EventCharged, EventActivated:
		if !ev.Plan.Valid() {
			return types.NewAppError(types.ErrCodeValidationInvalidPlan, "unsupported plan: "+string(ev.Plan), nil)
		}
		end := resolvePeriodEnd(ev.Plan, ev.PeriodEnd, now)
		if err := s.subs.UpsertActivation(ctx, ActivationUpdate{
			FirmID:                 firmID,
			Plan:                   ev.Plan,
			ProviderSubscriptionID: ev.ProviderSubscriptionID,
			ProviderPaymentID:      ev.ProviderPaymentID,
			CurrentPeriodEnd:       end,
		}); err != nil {
			return err
		}
		s.notify(ctx, types.NotificationMessage{
			Kind:      types.NotifyRenewal,
			FirmID:    firmID,
			Plan:      ev.Plan,
			PeriodEnd: &end,
		})
		return nil

	case EventCancelled:
		if err := s.subs.SetStatus(ctx, firmID, types.SubStatusCancelled); err != nil {
			return err
		}
		s.cascadeCancelSeats(ctx, firmID)
		s.notify(ctx, types.NotificationMessage{
			Kind:   types.NotifyCancellation,
			FirmID: firmID,
		})
		return nil

	case EventHalted, EventPaymentFailed:
		if err := s.subs.SetStatus(ctx, firmID, types.SubStatusPastDue); err != nil {
			return err
		}
		s.notify(ctx, types.NotificationMessage{
			Kind:   types.NotifyPaymentFailed,
			FirmID: firmID,
		})
		return nil
	}

	return types.NewAppError(types.ErrCodeInternalUnexpected, "unknown event kind: "+string(ev.Kind), nil)
}

func (s *Service) applySeatsEvent(ctx context.Context, firmID string, ev Event) error {
	now := s.clock.Now()

	switch ev.Kind {
	case EventCharged, EventActivated:
		sub, err := s.subs.Get(ctx, firmID)
		if err != nil {
			return err
		}
		if sub == nil {
			return types.NewAppError(types.ErrCodeNotFoundSubscription, "seats event for firm without subscription", nil)
		}

		if sub.Seats.PendingReduction != nil {
			return s.applyPendingReduction(ctx, firmID, sub, ev, now)
		}

		// No pending reduction: refresh period end and status, and
		// reconcile the purchased count to the provider's reported
		// quantity in case of drift.
		purchased := sub.Seats.Purchased
		if ev.SeatQuantity > 0 {
			purchased = ev.SeatQuantity
		}
		end := resolvePeriodEnd(sub.Plan, ev.PeriodEnd, now)
		return s.subs.UpdateSeats(ctx, firmID, SeatUpdate{
			Purchased:              purchased,
			ProviderSubscriptionID: ev.ProviderSubscriptionID,
			PeriodEnd:              &end,
			Status:                 types.SeatStatusActive,
		})

	case EventCancelled:
		return s.subs.ResetSeats(ctx, firmID)

	case EventHalted, EventPaymentFailed:
		return s.subs.SetSeatStatus(ctx, firmID, types.SeatStatusPastDue)
	}

	return types.NewAppError(types.ErrCodeInternalUnexpected, "unknown event kind: "+string(ev.Kind), nil)
}

// applyPendingReduction executes a deferred seat decrease at the renewal
// boundary. Reduction to zero cancels the seats subscription entirely;
// otherwise the provider quantity is lowered first, then local counts are
// set and the pending marker cleared (not merely zeroed).
func (s *Service) applyPendingReduction(ctx context.Context, firmID string, sub *types.Subscription, ev Event, now time.Time) error {
	target := *sub.Seats.PendingReduction

	if target == 0 {
		if err := s.provider.CancelSubscription(ctx, sub.Seats.ProviderSubscriptionID); err != nil {
			return err
		}
		return s.subs.ResetSeats(ctx, firmID)
	}

	if err := s.provider.UpdateSubscriptionQuantity(ctx, sub.Seats.ProviderSubscriptionID, target); err != nil {
		return err
	}

	end := resolvePeriodEnd(sub.Plan, ev.PeriodEnd, now)
	if err := s.subs.UpdateSeats(ctx, firmID, SeatUpdate{
		Purchased: target,
		PeriodEnd: &end,
		Status:    types.SeatStatusActive,
	}); err != nil {
		return err
	}
	return s.subs.ClearPendingReduction(ctx, firmID)
}

// cascadeCancelSeats cancels any linked seats subscription at the provider
// when the base subscription is cancelled, and marks the local seat status
// cancelled. Provider failures are logged and do not block the base
// cancellation, which has already been asserted by the provider.
func (s *Service) cascadeCancelSeats(ctx context.Context, firmID string) {
	sub, err := s.subs.Get(ctx, firmID)
	if err != nil || sub == nil {
		return
	}
	if sub.Seats.ProviderSubscriptionID == "" {
		return
	}

	if err := s.provider.CancelSubscription(ctx, sub.Seats.ProviderSubscriptionID); err != nil {
		s.logger.ErrorContext(ctx, "failed to cascade-cancel seats subscription",
			"firm_id", firmID,
			"seats_subscription_id", sub.Seats.ProviderSubscriptionID,
			"error", err,
		)
	}
	if err := s.subs.SetSeatStatus(ctx, firmID, types.SeatStatusCancelled); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark seats cancelled",
			"firm_id", firmID,
			"error", err,
		)
	}
}

// ---------------------------------------------------------------------------
// Referral reward processing
// ---------------------------------------------------------------------------

// processReferral grants the one-time referral bonus after the referee's
// first successful subscription payment. Any error here is logged and
// swallowed; the reward is a bonus, never a reason to fail the payment
// verification response.
func (s *Service) processReferral(ctx context.Context, firmID string) {
	firm, err := s.firms.GetByID(ctx, firmID)
	if err != nil {
		s.logger.ErrorContext(ctx, "referral: failed to load firm", "firm_id", firmID, "error", err)
		return
	}
	if firm.ReferredBy == "" {
		return
	}

	ref, err := s.referrals.FindPending(ctx, firmID, firm.ReferredBy)
	if err != nil {
		s.logger.ErrorContext(ctx, "referral: lookup failed", "firm_id", firmID, "error", err)
		return
	}
	if ref == nil {
		return
	}

	now := s.clock.Now()

	if err := s.extendPeriod(ctx, firmID, now); err != nil {
		s.logger.ErrorContext(ctx, "referral: failed to extend referee period",
			"firm_id", firmID, "error", err)
		return
	}
	if err := s.extendPeriod(ctx, firm.ReferredBy, now); err != nil {
		s.logger.ErrorContext(ctx, "referral: failed to extend referrer period",
			"firm_id", firm.ReferredBy, "error", err)
		// The referee's bonus is already applied; still mark rewarded so
		// the grant cannot repeat on a later payment.
	}

	if err := s.referrals.MarkRewarded(ctx, ref.ID, now); err != nil {
		s.logger.ErrorContext(ctx, "referral: failed to mark rewarded",
			"referral_id", ref.ID, "error", err)
	}
}

// extendPeriod pushes a firm's current period end out by the referral
// bonus. When the firm's period end is not yet persisted, the plan boundary
// from now is used as a sane fallback base.
func (s *Service) extendPeriod(ctx context.Context, firmID string, now time.Time) error {
	sub, err := s.subs.Get(ctx, firmID)
	if err != nil {
		return err
	}
	if sub == nil {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "no subscription to extend", nil)
	}

	base := now
	if sub.CurrentPeriodEnd != nil {
		base = *sub.CurrentPeriodEnd
	} else if sub.Plan.Valid() {
		base = PeriodEnd(sub.Plan, now)
	}

	return s.subs.SetCurrentPeriodEnd(ctx, firmID, base.Add(ReferralBonus))
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// SubscriptionView is the stored record plus the derived entitlement.
type SubscriptionView struct {
	Subscription *types.Subscription `json:"subscription,omitempty"`
	Valid        bool                `json:"valid"`
}

// GetSubscription returns the firm's stored subscription and the derived
// validity predicate, recomputed for this request.
func (s *Service) GetSubscription(ctx context.Context, firmID string) (*SubscriptionView, error) {
	sub, err := s.subs.Get(ctx, firmID)
	if err != nil {
		return nil, err
	}
	return &SubscriptionView{
		Subscription: sub,
		Valid:        IsSubscriptionValid(sub, s.clock.Now()),
	}, nil
}

// IsEntitled reports whether the firm currently holds a valid subscription.
func (s *Service) IsEntitled(ctx context.Context, firmID string) (bool, error) {
	sub, err := s.subs.Get(ctx, firmID)
	if err != nil {
		return false, err
	}
	return IsSubscriptionValid(sub, s.clock.Now()), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *Service) requireValidSubscription(ctx context.Context, firmID string) (*types.Subscription, error) {
	sub, err := s.subs.Get(ctx, firmID)
	if err != nil {
		return nil, err
	}
	if !IsSubscriptionValid(sub, s.clock.Now()) {
		return nil, types.NewAppError(
			types.ErrCodeConflictSubscriptionState,
			"an active subscription is required",
			nil,
		)
	}
	return sub, nil
}

func (s *Service) seatCost(sub *types.Subscription, additionalSeats int) (SeatCost, error) {
	if additionalSeats > 0 && s.cfg.SeatCeiling > 0 &&
		sub.Seats.Purchased+additionalSeats > s.cfg.SeatCeiling {
		return SeatCost{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationSeatCeiling,
			fmt.Sprintf("purchased seats may not exceed %d", s.cfg.SeatCeiling),
			nil,
			map[string]any{"ceiling": s.cfg.SeatCeiling, "requested": sub.Seats.Purchased + additionalSeats},
		)
	}

	end := s.clock.Now()
	if sub.CurrentPeriodEnd != nil {
		end = *sub.CurrentPeriodEnd
	}
	return ComputeSeatCost(sub.Plan, end, additionalSeats, s.clock.Now())
}

// notify publishes a notification message, filling in identifiers, and
// swallows any failure. Delivery is a non-critical side channel.
func (s *Service) notify(ctx context.Context, msg types.NotificationMessage) {
	if s.notifier == nil {
		return
	}
	msg.MessageID = uuid.New().String()
	msg.TraceID = types.GetRequestID(ctx)
	msg.Timestamp = s.clock.Now()
	if err := s.notifier.Publish(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to publish notification",
			"kind", msg.Kind,
			"firm_id", msg.FirmID,
			"error", err,
		)
	}
}
