package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSubmitDisabled is returned when the login/password pair does not
	// enable the submit action. The coordinator is left untouched.
	ErrSubmitDisabled = errors.New("submit disabled: login must be longer than 3 characters and password at least 3")
	// ErrSubmitInProgress is returned for a submission made while another
	// one is still being validated.
	ErrSubmitInProgress = errors.New("credential validation already in progress")
	// ErrInvalidPhase is returned when an action is not available in the
	// current phase.
	ErrInvalidPhase = errors.New("action not available in current phase")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("coordinator already started")
	// ErrInvalidCredentials is returned when the directory found no match.
	ErrInvalidCredentials = errors.New("invalid login or password")
	// ErrNoPersistedIdentity is returned by Unlock when nobody has logged in
	// on this device yet.
	ErrNoPersistedIdentity = errors.New("no persisted identity")
	// ErrBiometric is the sentinel every AlertError matches.
	ErrBiometric = errors.New("biometric sign-in failed")
)

// AlertError is returned by an explicit biometric sign-in that did not
// succeed. Its message is meant for a dismissible alert.
type AlertError struct {
	Reason FailureReason
	Detail string
}

func (e *AlertError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", ErrBiometric, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", ErrBiometric, e.Reason, e.Detail)
}

// Is lets errors.Is(err, ErrBiometric) match.
func (e *AlertError) Is(target error) bool {
	return target == ErrBiometric
}
