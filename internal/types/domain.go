package types

import "time"

// IncludedSeats is the seat allotment bundled with every subscription.
// One seat is always included; additional seats are purchased.
const IncludedSeats = 1

// Firm is the billing tenant. One subscription exists per firm, and the
// firm record carries the aggregate trial-report counter plus referral
// bookkeeping fields set at signup.
type Firm struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	OwnerID          string     `json:"owner_id"`
	ReferralCode     string     `json:"referral_code"`
	ReferredBy       string     `json:"referred_by,omitempty"` // referring firm ID
	TrialReportsUsed int        `json:"trial_reports_used"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// SeatInfo is the seats sub-record embedded in a Subscription.
//
// Invariant: Total == Included + Purchased after every mutation.
// PendingReduction, when set, holds the purchased-seat target to apply at the
// next seats renewal; it must be <= Purchased and is cleared (set to nil,
// not zero) once applied or cancelled.
type SeatInfo struct {
	Included               int        `json:"included"`
	Purchased              int        `json:"purchased"`
	Total                  int        `json:"total"`
	ProviderSubscriptionID string     `json:"provider_subscription_id,omitempty"`
	PeriodEnd              *time.Time `json:"period_end,omitempty"`
	Status                 SeatStatus `json:"status,omitempty"`
	PendingReduction       *int       `json:"pending_reduction,omitempty"`
}

// Subscription is the authoritative local billing record for a firm, keyed
// by firm ID. Status transitions are driven exclusively by verified payment
// callbacks and provider webhooks; the provider remains the source of truth
// and every transition is an idempotent "set to X".
type Subscription struct {
	FirmID                 string             `json:"firm_id"`
	Plan                   Plan               `json:"plan"`
	Status                 SubscriptionStatus `json:"status"`
	ProviderSubscriptionID string             `json:"provider_subscription_id"`
	ProviderPaymentID      string             `json:"provider_payment_id,omitempty"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end,omitempty"`
	Seats                  SeatInfo           `json:"seats"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// DeviceTrial records a device fingerprint's trial activation. Keyed by the
// fingerprint. Created or merged on first activation; read-only afterward
// except for admin reset.
type DeviceTrial struct {
	DeviceID           string     `json:"device_id"`
	PersistentDeviceID string     `json:"persistent_device_id,omitempty"`
	FirmActivated      string     `json:"firm_activated,omitempty"`
	ActivatedBy        string     `json:"activated_by,omitempty"` // user ID
	IPPrefix           string     `json:"ip_prefix,omitempty"`
	ActivatedAt        *time.Time `json:"activated_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// IPTrial records trial activity for a network neighborhood, keyed by the
// truncated IP prefix. The linked sets grow via union semantics and never
// shrink except by explicit admin reset.
type IPTrial struct {
	IPPrefix    string    `json:"ip_prefix"`
	FirmIDs     []string  `json:"firm_ids"`
	DeviceIDs   []string  `json:"device_ids"`
	UserIDs     []string  `json:"user_ids"`
	Whitelisted bool      `json:"whitelisted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Referral links a referee firm to the referrer whose code it signed up with.
// Exactly one referral exists per referee firm; status moves pending ->
// rewarded exactly once, on the referee's first successful subscription
// payment.
type Referral struct {
	ID             string         `json:"id"`
	ReferrerFirmID string         `json:"referrer_firm_id"`
	RefereeFirmID  string         `json:"referee_firm_id"`
	RefereeUserID  string         `json:"referee_user_id"`
	Status         ReferralStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	RewardedAt     *time.Time     `json:"rewarded_at,omitempty"`
}

// TrialDecision is the outcome of a trial-eligibility check.
type TrialDecision struct {
	Eligible bool             `json:"eligible"`
	Reason   TrialBlockReason `json:"reason,omitempty"`
	IPPrefix string           `json:"ip_prefix"`
}
