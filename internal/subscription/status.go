// Package subscription defines the subscription status values and the
// single authoritative transition table. Every status mutation in the
// service layer goes through CanTransition; nothing else is allowed to
// change a subscription row's status.
package subscription

import "errors"

// Status is the lifecycle state of one subscription row.
type Status string

const (
	// StatusPending is a checkout that awaits payment confirmation.
	StatusPending Status = "pending"
	// StatusActive is a paid (or free) subscription within its period.
	StatusActive Status = "active"
	// StatusExpired is an active subscription whose period ended.
	StatusExpired Status = "expired"
	// StatusCancelled is a subscription ended by the user or an admin.
	StatusCancelled Status = "cancelled"
	// StatusFailed is a checkout whose payment was declined.
	StatusFailed Status = "failed"
)

// ErrInvalidTransition is returned when a status change is not permitted
// by the transition table.
var ErrInvalidTransition = errors.New("invalid subscription status transition")

var transitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusFailed, StatusCancelled},
	StatusActive:  {StatusExpired, StatusCancelled},
	// expired, cancelled and failed are terminal: a new row is created
	// instead of reviving an old one.
	StatusExpired:   {},
	StatusCancelled: {},
	StatusFailed:    {},
}

// Valid reports whether s is a known status value.
func Valid(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a subscription may move from one status
// to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ActionType values written to the subscription history ledger.
const (
	ActionPayment      = "payment"
	ActionRenewal      = "renewal"
	ActionUpgrade      = "upgrade"
	ActionDowngrade    = "downgrade"
	ActionCancellation = "cancellation"
)

// Billing cycle names used by the plan catalog.
const (
	CycleMonthly  = "monthly"
	CycleYearly   = "yearly"
	CycleLifetime = "lifetime"
)

// PlanFree is the machine name of the fallback plan users are downgraded to.
const PlanFree = "free"
