package billing

import (
	"time"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// GracePeriod is the tolerance window after a subscription's period end
// during which entitlement is still honored. It absorbs webhook delivery
// latency at renewal boundaries.
const GracePeriod = 24 * time.Hour

// IsSubscriptionValid is the single entitlement predicate for the platform.
// Status must be active AND, when a period end is stored, now must be within
// the grace window past it. "expired" is this predicate returning false for
// an otherwise-active record; it is never stored.
//
// The result must be recomputed on every entitlement check and never cached
// beyond the life of a single request.
func IsSubscriptionValid(sub *types.Subscription, now time.Time) bool {
	if sub == nil || sub.Status != types.SubStatusActive {
		return false
	}
	if sub.CurrentPeriodEnd == nil {
		return true
	}
	return !now.After(sub.CurrentPeriodEnd.Add(GracePeriod))
}
