package biometric

import (
	"context"
	"sync"
)

// Scripted is a Gate that replays a fixed capability and a queue of results.
// When the queue is empty it answers Failed("unknown").
type Scripted struct {
	mu         sync.Mutex
	capability Capability
	results    []Result
	prompts    []Prompt
	hold       chan struct{}
}

// NewScripted builds a scripted gate.
func NewScripted(capability Capability, results ...Result) *Scripted {
	return &Scripted{capability: capability, results: results}
}

// Hold makes Challenge block until Release is called or ctx ends.
func (s *Scripted) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = make(chan struct{})
}

// Release unblocks challenges waiting because of Hold.
func (s *Scripted) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hold != nil {
		close(s.hold)
		s.hold = nil
	}
}

// Enqueue appends results to the queue.
func (s *Scripted) Enqueue(results ...Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, results...)
}

// Prompts returns every prompt the gate was challenged with.
func (s *Scripted) Prompts() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Prompt(nil), s.prompts...)
}

// Capability implements Gate.
func (s *Scripted) Capability(context.Context) Capability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capability
}

// Challenge implements Gate.
func (s *Scripted) Challenge(ctx context.Context, prompt Prompt) Result {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	hold := s.hold
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return Result{Outcome: Cancelled, Reason: ctx.Err().Error()}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return Result{Outcome: Failed, Reason: ReasonUnknown}
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r
}
