package session

import (
	"fmt"

	"github.com/tabapp/tabapp/internal/biometric"
	"github.com/tabapp/tabapp/internal/identity"
)

// Phase is the coordinator's state-machine value.
type Phase int

const (
	Idle Phase = iota
	CheckingPersisted
	AwaitingBiometric
	ValidatingCredentials
	Authenticated
	GuestMode
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case CheckingPersisted:
		return "checking_persisted"
	case AwaitingBiometric:
		return "awaiting_biometric"
	case ValidatingCredentials:
		return "validating_credentials"
	case Authenticated:
		return "authenticated"
	case GuestMode:
		return "guest"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// FailureReason classifies why the coordinator is in the Failed phase or
// why a failure was absorbed.
type FailureReason string

const (
	StorageFailure       FailureReason = "storage_failure"
	NetworkFailure       FailureReason = "network_failure"
	InvalidCredentials   FailureReason = "invalid_credentials"
	BiometricUnavailable FailureReason = "biometric_unavailable"
	BiometricCancelled   FailureReason = "biometric_cancelled"
	BiometricFailed      FailureReason = "biometric_failed"
)

// Failure is carried by the Failed phase. Silent failures come from startup
// re-entry and are not shown as alerts.
type Failure struct {
	Reason FailureReason
	Detail string
	Silent bool
}

// State is a snapshot of the coordinator.
type State struct {
	Phase              Phase
	Failure            *Failure
	Identity           *identity.Record
	BiometricAvailable bool
	BiometricKinds     []biometric.Kind
}

// IsAuthenticated reports whether an identity has been established.
func (s State) IsAuthenticated() bool {
	return s.Phase == Authenticated && s.Identity != nil
}

func (s State) clone() State {
	out := s
	if s.Failure != nil {
		f := *s.Failure
		out.Failure = &f
	}
	if s.Identity != nil {
		rec := *s.Identity
		out.Identity = &rec
	}
	out.BiometricKinds = append([]biometric.Kind(nil), s.BiometricKinds...)
	return out
}

// Variant tags a transition whose side effects differ from the plain phase
// change.
type Variant string

const (
	// VariantOptimisticDisplayName marks entry to AwaitingBiometric: the
	// persisted display name is published before the challenge resolves and
	// stays published if it fails.
	VariantOptimisticDisplayName Variant = "optimistic_display_name"
	// VariantGuest marks entry to the authenticated area without identity.
	VariantGuest Variant = "guest"
	// VariantSignOut marks the return to Idle after sign-out.
	VariantSignOut Variant = "sign_out"
)

// Transition describes one committed phase change.
type Transition struct {
	From    Phase
	To      Phase
	Reason  FailureReason
	Variant Variant
}

func reasonFor(r biometric.Result) FailureReason {
	switch {
	case r.Outcome == biometric.Cancelled:
		return BiometricCancelled
	case r.Reason == biometric.ReasonNotAvailable || r.Reason == biometric.ReasonNotEnrolled:
		return BiometricUnavailable
	default:
		return BiometricFailed
	}
}
