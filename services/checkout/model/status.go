package model

import "strings"

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusVerifying Status = "VERIFYING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var transitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusVerifying: {},
		StatusCancelled: {},
	},
	StatusVerifying: {
		StatusCompleted: {},
		StatusCancelled: {},
		StatusPending:   {},
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ParseStatus returns the status named by raw, which must match exactly.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := transitions[s]; !ok {
		return "", ErrInvalidStatus
	}

	return s, nil
}

// OrderStatus is the order vocabulary for s.
func (s Status) OrderStatus() string {
	return strings.ToLower(string(s))
}

// CanTransitionTo reports whether next is reachable from s in ordinary flow.
//
// Staying in the same status is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}

	_, ok := transitions[s][next]
	return ok
}
