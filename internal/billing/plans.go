// Package billing implements the subscription and seat billing engine:
// plan catalog, proration, the subscription state machine driven by verified
// payment callbacks and provider webhooks, deferred seat reductions, and
// referral reward bookkeeping.
package billing

import (
	"time"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// PlanPricing is the authoritative pricing and period definition for a plan.
// All amounts are in paise (minor units).
type PlanPricing struct {
	// BasePrice is the recurring price of the plan itself per cycle.
	BasePrice int64
	// SeatPrice is the recurring price of one additional seat per cycle.
	SeatPrice int64
	// PeriodDays is the nominal cycle length used for the proration daily
	// rate. Renewal boundaries use calendar arithmetic, not this value.
	PeriodDays int
	// ProviderPlanID is the payment provider's plan identifier.
	ProviderPlanID string
	// ProviderSeatPlanID is the provider plan used for the per-seat
	// sub-subscription (quantity = purchased seats).
	ProviderSeatPlanID string
}

// planCatalog is the single source of truth for plan pricing. Both the
// direct-verification path and the webhook path read from here, so the
// tables cannot drift apart.
var planCatalog = map[types.Plan]PlanPricing{
	types.PlanMonthly: {
		BasePrice:          99900,
		SeatPrice:          40000,
		PeriodDays:         30,
		ProviderPlanID:     "plan_vq_monthly",
		ProviderSeatPlanID: "plan_vq_monthly_seat",
	},
	types.PlanHalfYearly: {
		BasePrice:          539400,
		SeatPrice:          216000,
		PeriodDays:         180,
		ProviderPlanID:     "plan_vq_halfyearly",
		ProviderSeatPlanID: "plan_vq_halfyearly_seat",
	},
	types.PlanYearly: {
		BasePrice:          958800,
		SeatPrice:          384000,
		PeriodDays:         365,
		ProviderPlanID:     "plan_vq_yearly",
		ProviderSeatPlanID: "plan_vq_yearly_seat",
	},
}

// PricingFor returns the pricing definition for the given plan.
func PricingFor(plan types.Plan) (PlanPricing, bool) {
	p, ok := planCatalog[plan]
	return p, ok
}

// PeriodEnd computes the renewal boundary for a plan starting at from,
// using calendar-aware arithmetic: a monthly cycle started on Jan 31 ends
// in early March per time.AddDate normalization, never a fixed day count.
func PeriodEnd(plan types.Plan, from time.Time) time.Time {
	switch plan {
	case types.PlanHalfYearly:
		return from.AddDate(0, 6, 0)
	case types.PlanYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}
