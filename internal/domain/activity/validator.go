package activity

import (
	"strings"
)

// Violation names the first consistency rule a record broke
type Violation string

const (
	ViolationNone      Violation = ""
	ViolationSession   Violation = "invalid_session"
	ViolationPrice     Violation = "invalid_price"
	ViolationStatus    Violation = "invalid_status"
	ViolationLifecycle Violation = "invalid_lifecycle"
)

// Violations lists every violation kind in check order
var Violations = []Violation{
	ViolationSession,
	ViolationPrice,
	ViolationStatus,
	ViolationLifecycle,
}

// Validator rejects candidate records that break temporal or logical constraints.
// It never mutates or repairs a record.
type Validator struct {
	statuses map[string]struct{}
}

// NewValidator creates a validator accepting the given purchase statuses.
// Statuses are compared case-insensitively.
func NewValidator(validStatuses []string) *Validator {
	statuses := make(map[string]struct{}, len(validStatuses))
	for _, s := range validStatuses {
		statuses[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return &Validator{statuses: statuses}
}

// Validate reports whether r passes every check
func (v *Validator) Validate(r RawRecord) bool {
	return v.Check(r) == ViolationNone
}

// Check returns the first violated rule, or ViolationNone
func (v *Validator) Check(r RawRecord) Violation {
	if !validSession(r) {
		return ViolationSession
	}
	if price, ok := ParsePrice(r.Price); !ok || !price.IsPositive() {
		return ViolationPrice
	}
	if !v.AllowsStatus(r.PurchaseStatus) {
		return ViolationStatus
	}
	if !validLifecycle(r) {
		return ViolationLifecycle
	}
	return ViolationNone
}

// AllowsStatus reports whether status is on the allow-list
func (v *Validator) AllowsStatus(status string) bool {
	_, ok := v.statuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

func validSession(r RawRecord) bool {
	login, ok := ParseTimestamp(r.LoginTime)
	if !ok {
		return false
	}
	logout, ok := ParseTimestamp(r.LogoutTime)
	if !ok {
		return false
	}
	return !login.After(logout)
}

func validLifecycle(r RawRecord) bool {
	created, ok := ParseTimestamp(r.AccountCreated)
	if !ok {
		return false
	}
	updated, ok := ParseTimestamp(r.AccountUpdated)
	if !ok || updated.Before(created) {
		return false
	}
	active, ok := ParseActiveFlag(r.IsActive)
	if !ok {
		return false
	}

	if IsNull(r.AccountDeleted) {
		return active.Bool()
	}
	deleted, ok := ParseTimestamp(r.AccountDeleted)
	if !ok || deleted.Before(updated) {
		return false
	}
	return !active.Bool()
}
