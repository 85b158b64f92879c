package types

import "time"

// NotificationKind identifies the outbound notification being dispatched to
// the email worker via the notification queue.
type NotificationKind string

const (
	NotifyRenewal       NotificationKind = "subscription_renewed"
	NotifyCancellation  NotificationKind = "subscription_cancelled"
	NotifyPaymentFailed NotificationKind = "payment_failed"
	NotifyAbuseAlert    NotificationKind = "trial_abuse_alert"
)

// NotificationMessage is the JSON payload published to the notification
// queue. Delivery is a non-critical side channel: publish failures are
// logged and never fail the enclosing billing transaction.
type NotificationMessage struct {
	MessageID string           `json:"message_id"`
	TraceID   string           `json:"trace_id,omitempty"`
	Kind      NotificationKind `json:"kind"`
	FirmID    string           `json:"firm_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`

	// Kind-specific context. Small and flat on purpose; the email worker
	// owns template selection and rendering.
	Plan      Plan       `json:"plan,omitempty"`
	PeriodEnd *time.Time `json:"period_end,omitempty"`
	IPPrefix  string     `json:"ip_prefix,omitempty"`
	DeviceID  string     `json:"device_id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
}
