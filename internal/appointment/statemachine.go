package appointment

import (
	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/auth"
)

// transitionTable maps (role, current status) to the statuses that role may
// move the appointment into. Anything absent is rejected, including
// current == target. Terminal states have no outgoing edges.
var transitionTable = map[auth.Role]map[string][]string{
	auth.RoleClient: {
		StatusPending:   {StatusCanceled},
		StatusConfirmed: {StatusCanceled},
	},
	auth.RoleProvider: {
		StatusPending:   {StatusConfirmed, StatusCanceled},
		StatusConfirmed: {StatusCanceled, StatusCompleted},
	},
}

// CanTransition reports whether role may move an appointment from current to
// target. Pure lookup, no side effects.
func CanTransition(role auth.Role, current, target string) bool {
	allowed, ok := transitionTable[role][current]
	if !ok {
		return false
	}
	for _, next := range allowed {
		if next == target {
			return true
		}
	}
	return false
}

// ValidateTransition wraps CanTransition with the domain error naming the
// rejected move.
func ValidateTransition(role auth.Role, current, target string) error {
	if !CanTransition(role, current, target) {
		return internal.NewInvalidTransitionError(string(role), current, target)
	}
	return nil
}
