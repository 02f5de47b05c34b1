package vaccination

import (
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
)

// Action triggers a status transition.
type Action string

const (
	ActionRequest  Action = "request"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionMiss     Action = "miss"
)

// transitions is the complete schedule state machine. The empty status is
// the state before a schedule exists. Statuses without an entry are terminal.
var transitions = map[Status]map[Action]Status{
	"": {
		ActionRequest: StatusPendingApproval,
	},
	StatusPendingApproval: {
		ActionApprove: StatusScheduled,
		ActionReject:  StatusRejectedByAdmin,
		ActionCancel:  StatusCancelled,
	},
	StatusScheduled: {
		ActionComplete: StatusCompleted,
		ActionMiss:     StatusMissed,
		ActionCancel:   StatusCancelled,
	},
}

// Next returns the status reached by applying action in from. Any pair
// outside the table is a conflict naming both.
func Next(from Status, action Action) (Status, error) {
	if to, ok := transitions[from][action]; ok {
		return to, nil
	}
	return "", apperr.Conflict("Cannot %s a vaccination schedule with status '%s'.", action, from)
}

// Allowed reports whether action may be applied in from.
func Allowed(from Status, action Action) bool {
	_, ok := transitions[from][action]
	return ok
}
