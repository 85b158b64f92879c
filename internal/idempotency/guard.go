package idempotency

import (
	"fmt"
	"time"
)

// Result is the recorded outcome of a previously processed event. Failed
// signature attempts are recorded too: a bad payload retried forever must
// not re-trigger verification and state-machine work on every delivery.
type Result struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
}

// Guard deduplicates operations by their natural composite keys.
type Guard struct {
	cache KeyValueTTLCache
	ttl   time.Duration
}

// NewGuard creates a Guard over the given cache. A non-positive ttl falls
// back to DefaultTTL.
func NewGuard(cache KeyValueTTLCache, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{cache: cache, ttl: ttl}
}

// Seen returns the recorded result for key, if any.
func (g *Guard) Seen(key string) (Result, bool) {
	v, ok := g.cache.Get(key)
	if !ok {
		return Result{}, false
	}
	res, ok := v.(Result)
	return res, ok
}

// Remember records the result for key for the deduplication window.
func (g *Guard) Remember(key string, res Result) {
	g.cache.Set(key, res, g.ttl)
}

// Sweep evicts expired entries from the backing cache.
func (g *Guard) Sweep() {
	g.cache.Sweep()
}

// PaymentKey is the dedup key for subscription payment verification.
func PaymentKey(paymentID, subscriptionID string) string {
	return fmt.Sprintf("pay:%s_%s", paymentID, subscriptionID)
}

// OrderKey is the dedup key for one-time order (seat purchase) verification.
func OrderKey(orderID, paymentID string) string {
	return fmt.Sprintf("order:%s_%s", orderID, paymentID)
}

// WebhookKey is the dedup key for provider webhook deliveries.
func WebhookKey(event, subscriptionID, paymentID string) string {
	return fmt.Sprintf("hook:%s_%s_%s", event, subscriptionID, paymentID)
}
