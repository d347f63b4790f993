package appointment

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusCheckedIn  Status = "CHECKED_IN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusNoShow     Status = "NO_SHOW"
	StatusCancelled  Status = "CANCELLED"
)

// Sentinel errors for transition failures, matchable with errors.Is.
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTerminalState     = errors.New("appointment is in a terminal state")
)

// TransitionError reports a rejected status transition, naming both states.
type TransitionError struct {
	From Status
	To   Status
	err  error
}

func (e *TransitionError) Error() string {
	if errors.Is(e.err, ErrTerminalState) {
		return fmt.Sprintf("appointment status %s is terminal and cannot change (requested %s)", e.From, e.To)
	}
	return fmt.Sprintf("cannot transition appointment from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return e.err }

// ReasonCode returns the machine-readable reason for API responses.
func (e *TransitionError) ReasonCode() string {
	if errors.Is(e.err, ErrTerminalState) {
		return "TerminalStateImmutable"
	}
	return "InvalidTransition"
}

// transitions is the allowed lifecycle graph. Terminal statuses have no
// entry: COMPLETED, NO_SHOW, and CANCELLED admit no outgoing transitions.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusCheckedIn, StatusNoShow, StatusCancelled},
	StatusCheckedIn:  {StatusInProgress, StatusNoShow, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCheckedIn, StatusInProgress,
		StatusCompleted, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// ApplyTransition validates requested against the lifecycle graph and
// returns the new status. It is pure: persistence and downstream effects
// (like the waiting-queue view updating) are the caller's responsibility.
// Self-transitions are not in the graph and are rejected as invalid.
func ApplyTransition(current, requested Status) (Status, error) {
	if current.Terminal() {
		return current, &TransitionError{From: current, To: requested, err: ErrTerminalState}
	}
	for _, next := range transitions[current] {
		if next == requested {
			return requested, nil
		}
	}
	return current, &TransitionError{From: current, To: requested, err: ErrInvalidTransition}
}
