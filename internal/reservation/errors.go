// Package reservation allocates activity and session seats to users.
//
// All coordination between concurrent requests happens in the backing
// store: every create or cancel runs in one transaction that first takes an
// exclusive row lock on the bookable resource, so operations on the same
// resource are linearized and a failed step never leaves a partial write.
package reservation

import "errors"

// Policy errors are detected before any write and are safe to show to the
// caller.  Anything else returned by Service is an internal failure.
var (
	ErrResourceNotFound     = errors.New("resource not found")
	ErrMembershipRequired   = errors.New("membership required")
	ErrMembershipExpired    = errors.New("membership not valid for this date")
	ErrWeeklyLimitReached   = errors.New("weekly limit reached")
	ErrDuplicateReservation = errors.New("already enrolled")
	ErrCapacityExhausted    = errors.New("no seats left")
	ErrNotFound             = errors.New("reservation not found")
)

// Outcome returns a short label for err, used in metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrResourceNotFound):
		return "resource_not_found"
	case errors.Is(err, ErrMembershipRequired):
		return "membership_required"
	case errors.Is(err, ErrMembershipExpired):
		return "membership_expired"
	case errors.Is(err, ErrWeeklyLimitReached):
		return "weekly_limit_reached"
	case errors.Is(err, ErrDuplicateReservation):
		return "duplicate"
	case errors.Is(err, ErrCapacityExhausted):
		return "capacity_exhausted"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "internal"
}

// IsConflict reports whether err is a policy rejection that the client can
// act on (HTTP 409).
func IsConflict(err error) bool {
	switch Outcome(err) {
	case "membership_required", "membership_expired", "weekly_limit_reached", "duplicate", "capacity_exhausted":
		return true
	}
	return false
}
