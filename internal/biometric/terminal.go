package biometric

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Terminal is a Gate for headless runs: it prints the prompt and reads a
// single answer line, "y" for a recognised biometric, "c" to cancel and
// anything else as a failed match.
type Terminal struct {
	in         *bufio.Reader
	out        io.Writer
	capability Capability
	timeout    time.Duration

	mu    sync.Mutex
	lines chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewTerminal builds a terminal gate. A zero timeout waits indefinitely.
func NewTerminal(in io.Reader, out io.Writer, capability Capability, timeout time.Duration) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, capability: capability, timeout: timeout}
}

// Capability implements Gate.
func (t *Terminal) Capability(context.Context) Capability {
	return t.capability
}

// Challenge implements Gate.
func (t *Terminal) Challenge(ctx context.Context, prompt Prompt) Result {
	if !t.capability.HasHardware {
		return Result{Outcome: Failed, Reason: ReasonNotAvailable}
	}
	if !t.capability.IsEnrolled {
		return Result{Outcome: Failed, Reason: ReasonNotEnrolled}
	}

	// A read left pending by an earlier timeout keeps its channel so the
	// next challenge consumes that line instead of racing a second reader.
	t.mu.Lock()
	fmt.Fprintf(t.out, "%s [y = match, c = %s, other = no match]: ", prompt.Message, prompt.CancelLabel)
	if t.lines == nil {
		t.lines = make(chan lineResult, 1)
		go func(ch chan<- lineResult) {
			line, err := t.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}(t.lines)
	}
	lines := t.lines
	t.mu.Unlock()

	var timeout <-chan time.Time
	if t.timeout > 0 {
		timer := time.NewTimer(t.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-lines:
		t.mu.Lock()
		if t.lines == lines {
			t.lines = nil
		}
		t.mu.Unlock()
		if res.err != nil && res.line == "" {
			return Result{Outcome: Failed, Reason: res.err.Error()}
		}
		switch strings.ToLower(strings.TrimSpace(res.line)) {
		case "y", "yes":
			return Result{Outcome: Success}
		case "c", "cancel":
			return Result{Outcome: Cancelled, Reason: "user_cancel"}
		default:
			return Result{Outcome: Failed, Reason: "authentication_failed"}
		}
	case <-timeout:
		return Result{Outcome: Failed, Reason: ReasonTimeout}
	case <-ctx.Done():
		return Result{Outcome: Cancelled, Reason: ctx.Err().Error()}
	}
}
