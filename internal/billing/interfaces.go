package billing

import (
	"context"
	"time"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// ActivationUpdate carries the targeted fields of a base-subscription
// activation upsert. Seat fields are initialized only on insert; updates
// never touch them, so concurrent seats-scope writes are not clobbered.
type ActivationUpdate struct {
	FirmID                 string
	Plan                   types.Plan
	ProviderSubscriptionID string
	ProviderPaymentID      string
	CurrentPeriodEnd       time.Time
}

// SeatUpdate carries the targeted fields of a seats refresh. A zero-value
// ProviderSubscriptionID or nil PeriodEnd leaves the stored value untouched.
type SeatUpdate struct {
	Purchased              int
	ProviderSubscriptionID string
	PeriodEnd              *time.Time
	Status                 types.SeatStatus
}

// SubscriptionRepository is the persistence contract for the per-firm
// subscription record. All mutations are targeted field updates, never full
// document overwrites, so the three concurrent writers (payment
// verification, webhooks, seat scheduling) cannot clobber each other's
// unrelated fields.
//
// Get returns (nil, nil) when no subscription record exists for the firm;
// that absence is the "trial" state.
type SubscriptionRepository interface {
	Get(ctx context.Context, firmID string) (*types.Subscription, error)
	UpsertActivation(ctx context.Context, up ActivationUpdate) error
	SetStatus(ctx context.Context, firmID string, status types.SubscriptionStatus) error
	SetCurrentPeriodEnd(ctx context.Context, firmID string, end time.Time) error
	UpdateSeats(ctx context.Context, firmID string, up SeatUpdate) error
	SetSeatStatus(ctx context.Context, firmID string, status types.SeatStatus) error
	SetPendingReduction(ctx context.Context, firmID string, target int) error
	ClearPendingReduction(ctx context.Context, firmID string) error
	// ResetSeats zeroes purchased seats, restores total to the included
	// allotment, marks the seat status cancelled, and clears the provider
	// seats-subscription linkage and any pending reduction.
	ResetSeats(ctx context.Context, firmID string) error
}

// FirmReader provides the minimal firm data the billing engine needs.
type FirmReader interface {
	GetByID(ctx context.Context, firmID string) (*types.Firm, error)
	CountActiveMembers(ctx context.Context, firmID string) (int, error)
}

// ReferralRepository provides referral-record access for reward processing.
// FindPending returns (nil, nil) when no pending referral matches.
type ReferralRepository interface {
	FindPending(ctx context.Context, refereeFirmID, referrerFirmID string) (*types.Referral, error)
	MarkRewarded(ctx context.Context, referralID string, at time.Time) error
}

// ProviderSubscription is the provider's view of a created subscription.
type ProviderSubscription struct {
	ID       string
	Status   string
	ShortURL string
}

// ProviderOrder is the provider's view of a created one-time order.
type ProviderOrder struct {
	ID       string
	Amount   int64
	Currency string
}

// SubscriptionRequest is the input for creating a provider subscription.
type SubscriptionRequest struct {
	PlanID   string
	Quantity int
	Notes    map[string]string
}

// ProviderGateway abstracts the recurring-payment provider. Every outbound
// call is potentially blocking I/O bounded by the configured provider
// timeout; gateway calls always precede local persistence so entitlement is
// never recorded for a charge the provider has not accepted.
type ProviderGateway interface {
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*ProviderSubscription, error)
	CreateOrder(ctx context.Context, amountPaise int64, receipt string, notes map[string]string) (*ProviderOrder, error)
	UpdateSubscriptionQuantity(ctx context.Context, providerSubID string, quantity int) error
	CancelSubscription(ctx context.Context, providerSubID string) error
}

// PaymentVerifier checks the authenticity of client-relayed payment
// callbacks against the provider key secret.
type PaymentVerifier interface {
	// VerifySubscription checks the signature over "paymentID|subscriptionID".
	VerifySubscription(paymentID, subscriptionID, signature string) error
	// VerifyOrder checks the signature over "orderID|paymentID".
	VerifyOrder(orderID, paymentID, signature string) error
}

// Notifier publishes non-critical outbound notifications. Publish failures
// must be swallowed by callers; delivery is a bonus, not a correctness path.
type Notifier interface {
	Publish(ctx context.Context, msg types.NotificationMessage) error
}
