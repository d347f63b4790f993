package appointment

import (
	"errors"
	"testing"
)

func TestApplyTransitionValid(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{StatusScheduled, StatusCheckedIn},
		{StatusScheduled, StatusNoShow},
		{StatusScheduled, StatusCancelled},
		{StatusCheckedIn, StatusInProgress},
		{StatusCheckedIn, StatusNoShow},
		{StatusCheckedIn, StatusCancelled},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusCancelled},
	}

	for _, tc := range cases {
		got, err := ApplyTransition(tc.from, tc.to)
		if err != nil {
			t.Errorf("ApplyTransition(%s, %s): unexpected error %v", tc.from, tc.to, err)
		}
		if got != tc.to {
			t.Errorf("ApplyTransition(%s, %s) = %s, want %s", tc.from, tc.to, got, tc.to)
		}
	}
}

func TestApplyTransitionInvalid(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{StatusScheduled, StatusInProgress},
		{StatusScheduled, StatusCompleted},
		{StatusCheckedIn, StatusScheduled},
		{StatusCheckedIn, StatusCompleted},
		{StatusInProgress, StatusScheduled},
		{StatusInProgress, StatusCheckedIn},
		{StatusInProgress, StatusNoShow},
	}

	for _, tc := range cases {
		got, err := ApplyTransition(tc.from, tc.to)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("ApplyTransition(%s, %s): got error %v, want ErrInvalidTransition", tc.from, tc.to, err)
		}
		if got != tc.from {
			t.Errorf("ApplyTransition(%s, %s) returned %s, want current state preserved", tc.from, tc.to, got)
		}
	}
}

func TestApplyTransitionTerminalStates(t *testing.T) {
	terminals := []Status{StatusCompleted, StatusNoShow, StatusCancelled}
	targets := []Status{StatusScheduled, StatusCheckedIn, StatusInProgress,
		StatusCompleted, StatusNoShow, StatusCancelled}

	for _, from := range terminals {
		for _, to := range targets {
			_, err := ApplyTransition(from, to)
			if !errors.Is(err, ErrTerminalState) {
				t.Errorf("ApplyTransition(%s, %s): got error %v, want ErrTerminalState", from, to, err)
			}
		}
	}
}

func TestApplyTransitionSelfTransition(t *testing.T) {
	for _, s := range []Status{StatusScheduled, StatusCheckedIn, StatusInProgress} {
		_, err := ApplyTransition(s, s)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("ApplyTransition(%s, %s): got error %v, want ErrInvalidTransition", s, s, err)
		}
	}
}

func TestTransitionErrorReasonCode(t *testing.T) {
	_, err := ApplyTransition(StatusCompleted, StatusScheduled)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransitionError, got %T", err)
	}
	if te.ReasonCode() != "TerminalStateImmutable" {
		t.Errorf("ReasonCode() = %q, want TerminalStateImmutable", te.ReasonCode())
	}

	_, err = ApplyTransition(StatusScheduled, StatusCompleted)
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransitionError, got %T", err)
	}
	if te.ReasonCode() != "InvalidTransition" {
		t.Errorf("ReasonCode() = %q, want InvalidTransition", te.ReasonCode())
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusScheduled, StatusCheckedIn, StatusInProgress,
		StatusCompleted, StatusNoShow, StatusCancelled} {
		if !s.Valid() {
			t.Errorf("%s.Valid() = false, want true", s)
		}
	}
	if Status("BOOKED").Valid() {
		t.Error(`Status("BOOKED").Valid() = true, want false`)
	}
}

func TestFullLifecycle(t *testing.T) {
	// Happy path: a visit from booking through completion.
	chain := []Status{StatusCheckedIn, StatusInProgress, StatusCompleted}
	current := StatusScheduled
	for _, next := range chain {
		got, err := ApplyTransition(current, next)
		if err != nil {
			t.Fatalf("ApplyTransition(%s, %s): %v", current, next, err)
		}
		current = got
	}
	if !current.Terminal() {
		t.Errorf("expected %s to be terminal", current)
	}
}
