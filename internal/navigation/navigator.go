package navigation

import (
	"context"
	"log/slog"
	"sync"
)

// Navigator carries out navigation requests.
type Navigator interface {
	Navigate(ctx context.Context, req Request) error
}

// LoggerNavigator writes requests to the structured logger. It stands in
// for a real screen stack in headless runs.
type LoggerNavigator struct {
	logger *slog.Logger
}

// NewLoggerNavigator constructs a logging navigator.
func NewLoggerNavigator(logger *slog.Logger) *LoggerNavigator {
	return &LoggerNavigator{logger: logger}
}

// Navigate writes the request to the structured logger.
func (n *LoggerNavigator) Navigate(_ context.Context, req Request) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("navigation", "mode", req.Mode.String(), "target", req.Target.String(), "guest", req.Guest)
	return nil
}

// Recorder keeps every request it receives.
type Recorder struct {
	mu       sync.Mutex
	requests []Request
}

// Navigate records req.
func (r *Recorder) Navigate(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return nil
}

// Requests returns a copy of the recorded requests.
func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}
