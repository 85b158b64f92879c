package types

// Plan identifies a recurring billing plan.
type Plan string

const (
	PlanMonthly    Plan = "monthly"
	PlanHalfYearly Plan = "halfyearly"
	PlanYearly     Plan = "yearly"
)

// Valid reports whether p is one of the supported plans.
func (p Plan) Valid() bool {
	switch p {
	case PlanMonthly, PlanHalfYearly, PlanYearly:
		return true
	}
	return false
}

// SubscriptionStatus is the stored billing status of a firm's subscription.
// "expired" is derived at read time by the entitlement predicate and never
// stored; "trial" is represented by the absence of a subscription record.
type SubscriptionStatus string

const (
	SubStatusActive    SubscriptionStatus = "active"
	SubStatusPastDue   SubscriptionStatus = "past_due"
	SubStatusCancelled SubscriptionStatus = "cancelled"
)

// SeatStatus mirrors SubscriptionStatus for the nested seats sub-record.
type SeatStatus string

const (
	SeatStatusActive    SeatStatus = "active"
	SeatStatusPastDue   SeatStatus = "past_due"
	SeatStatusCancelled SeatStatus = "cancelled"
)

// ReferralStatus is the lifecycle state of a referral record.
type ReferralStatus string

const (
	ReferralPending  ReferralStatus = "pending"
	ReferralRewarded ReferralStatus = "rewarded"
)

// TrialBlockReason explains why a free-trial request was denied.
type TrialBlockReason string

const (
	TrialBlockDeviceUsed  TrialBlockReason = "DEVICE_USED"
	TrialBlockNetworkUsed TrialBlockReason = "NETWORK_USED"
)

// UserRole defines authorization levels within a firm.
type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleMember UserRole = "member"
)

// roleRank orders roles for minimum-role checks. Higher is more privileged.
var roleRank = map[UserRole]int{
	RoleMember: 1,
	RoleOwner:  2,
}

// HasAtLeast reports whether the role meets or exceeds the given minimum.
// Unknown roles rank below every known role.
func (r UserRole) HasAtLeast(min UserRole) bool {
	return roleRank[r] >= roleRank[min]
}
