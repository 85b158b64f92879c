package billing

import (
	"time"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// EventKind enumerates the verified billing events that drive subscription
// state. Every transition is an idempotent "set to X": replays and
// out-of-order deliveries of the same event converge to the same state.
type EventKind string

const (
	EventCharged       EventKind = "charged"
	EventActivated     EventKind = "activated"
	EventCancelled     EventKind = "cancelled"
	EventHalted        EventKind = "halted"
	EventPaymentFailed EventKind = "payment_failed"
)

// EventScope distinguishes events for the base subscription from events for
// the seats sub-subscription.
type EventScope string

const (
	ScopeBase  EventScope = "base"
	ScopeSeats EventScope = "seats"
)

// Event is the tagged variant consumed by the single transition function.
// Both the direct payment-verification path and the webhook path construct
// an Event; neither carries its own status-string conditionals.
type Event struct {
	Kind  EventKind
	Scope EventScope

	// Plan is set for base activations (charged/activated).
	Plan types.Plan

	ProviderSubscriptionID string
	ProviderPaymentID      string

	// PeriodEnd is the provider's authoritative current_end when present.
	// When nil, the transition computes the boundary from the plan.
	PeriodEnd *time.Time

	// SeatQuantity is the provider-reported seat quantity on seats events,
	// used to reconcile local drift on renewal.
	SeatQuantity int
}

// resolvePeriodEnd prefers the provider's authoritative boundary over a
// locally computed one. The provider's clock wins whenever both exist.
func resolvePeriodEnd(plan types.Plan, providerEnd *time.Time, now time.Time) time.Time {
	if providerEnd != nil && !providerEnd.IsZero() {
		return providerEnd.UTC()
	}
	return PeriodEnd(plan, now)
}
