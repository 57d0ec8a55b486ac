package activity

import "strings"

// ActiveFlag is the normalized account activity flag
type ActiveFlag string

const (
	ActiveYes ActiveFlag = "yes"
	ActiveNo  ActiveFlag = "no"
)

// ParseActiveFlag accepts the spellings produced by upstream systems:
// 1/0, true/false, yes/no and y/n (case-insensitive, surrounding whitespace ignored)
func ParseActiveFlag(s string) (ActiveFlag, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return ActiveYes, true
	case "0", "false", "no", "n":
		return ActiveNo, true
	default:
		return "", false
	}
}

// Bool reports whether the flag marks an active account
func (f ActiveFlag) Bool() bool {
	return f == ActiveYes
}

// PurchaseStatus is the lowercased status of the purchase attached to a session
type PurchaseStatus string

const (
	StatusCompleted  PurchaseStatus = "completed"
	StatusPending    PurchaseStatus = "pending"
	StatusFailed     PurchaseStatus = "failed"
	StatusRefunded   PurchaseStatus = "refunded"
	StatusChargeback PurchaseStatus = "chargeback"
)

// DefaultValidStatuses is the allow-list used when none is configured
var DefaultValidStatuses = []string{
	string(StatusPending),
	string(StatusCompleted),
	string(StatusFailed),
	string(StatusChargeback),
	string(StatusRefunded),
}

// IsReversal reports whether money flowed back to the customer
func (s PurchaseStatus) IsReversal() bool {
	return s == StatusRefunded || s == StatusChargeback
}

// EngagementLevel buckets session length
type EngagementLevel string

const (
	EngagementVeryLow EngagementLevel = "Very Low"
	EngagementLow     EngagementLevel = "Low"
	EngagementMedium  EngagementLevel = "Medium"
	EngagementHigh    EngagementLevel = "High"
)

// EngagementFor maps a session length in minutes to its bucket.
// Buckets are left-closed: [0,30) [30,60) [60,120) [120,inf).
// Negative and NaN durations fall into the lowest bucket.
func EngagementFor(minutes float64) EngagementLevel {
	switch {
	case minutes >= 120:
		return EngagementHigh
	case minutes >= 60:
		return EngagementMedium
	case minutes >= 30:
		return EngagementLow
	default:
		return EngagementVeryLow
	}
}

// PriceTier is the quartile bucket of a price within its batch
type PriceTier string

const (
	TierBudget   PriceTier = "Budget"
	TierStandard PriceTier = "Standard"
	TierPremium  PriceTier = "Premium"
	TierLuxury   PriceTier = "Luxury"
)

// FallbackPriceTier is assigned to every row when quartile edges cannot be computed
const FallbackPriceTier = TierStandard

// DeviceType is the coarse device family derived from a user agent
type DeviceType string

const (
	DeviceMobile  DeviceType = "Mobile"
	DeviceTablet  DeviceType = "Tablet"
	DeviceDesktop DeviceType = "Desktop"
	DeviceBot     DeviceType = "Bot"
	DeviceOther   DeviceType = "Other"
)
