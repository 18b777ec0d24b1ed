package verify

import (
	"errors"
	"fmt"
)

// ErrSkippedState is wrapped by every *TransitionError.
var ErrSkippedState = errors.New("login state skipped")

// AssertionFailure reports a condition that was observed but did not match
// the expectation. It is distinct from a timeout: the element was there.
type AssertionFailure struct {
	Expected string
	Actual   string
	Message  string
}

func (e *AssertionFailure) Error() string {
	return fmt.Sprintf("%s: expected %q, got %q", e.Message, e.Expected, e.Actual)
}

// VerificationError names the step (and login transition, if any) a lower
// layer failure happened in.
type VerificationError struct {
	Step       string
	Transition string
	Err        error
}

func (e *VerificationError) Error() string {
	if e.Transition != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Step, e.Transition, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// TransitionError reports an attempt to move the login machine anywhere but
// to the state directly after its current one.
type TransitionError struct {
	From LoginState
	To   LoginState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot advance login from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrSkippedState
}
