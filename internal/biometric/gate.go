// Package biometric models the device biometric sensor: capability probing
// and a single user-facing challenge.
package biometric

import (
	"context"
	"fmt"
	"strings"
)

// Kind is a supported biometric modality.
type Kind string

const (
	Fingerprint       Kind = "fingerprint"
	FacialRecognition Kind = "facial_recognition"
	Iris              Kind = "iris"
)

// ParseKind maps a configuration value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fingerprint", "touch", "touchid":
		return Fingerprint, nil
	case "face", "faceid", "facial_recognition":
		return FacialRecognition, nil
	case "iris":
		return Iris, nil
	default:
		return "", fmt.Errorf("unknown biometric kind %q", s)
	}
}

// Capability describes what the device can do. Missing hardware or
// enrollment is a normal outcome, not an error.
type Capability struct {
	HasHardware bool
	IsEnrolled  bool
	Kinds       []Kind
}

// Available reports whether a challenge can succeed on this device.
func (c Capability) Available() bool {
	return c.HasHardware && c.IsEnrolled
}

// Outcome is the resolution of a challenge.
type Outcome int

const (
	Success Outcome = iota
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Failure reasons reported by the gates in this package.
const (
	ReasonNotAvailable = "not_available"
	ReasonNotEnrolled  = "not_enrolled"
	ReasonTimeout      = "timeout"
	ReasonLockout      = "lockout"
	ReasonUnknown      = "unknown"
)

// Result is what a challenge resolves to. Reason is set for Failed and
// optionally for Cancelled.
type Result struct {
	Outcome Outcome
	Reason  string
}

// Succeeded is shorthand for r.Outcome == Success.
func (r Result) Succeeded() bool {
	return r.Outcome == Success
}

// Prompt is the text shown by the OS-level challenge UI.
type Prompt struct {
	Message     string
	CancelLabel string
}

// Gate is the device biometric sensor. Challenge blocks until the user
// responds, cancels, or the platform timeout elapses; it retains no state
// between calls.
type Gate interface {
	Capability(ctx context.Context) Capability
	Challenge(ctx context.Context, prompt Prompt) Result
}
