package session

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts coordinator outcomes. A nil *Metrics records nothing.
type Metrics struct {
	transitions *prometheus.CounterVec
	absorbed    *prometheus.CounterVec
}

// NewMetrics registers the coordinator counters with reg. Collectors that
// are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabapp",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Committed session phase transitions by target phase",
		}, []string{"to"}),
		absorbed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabapp",
			Subsystem: "session",
			Name:      "absorbed_failures_total",
			Help:      "Failures logged and absorbed without changing the outcome",
		}, []string{"reason"}),
	}
	var err error
	if m.transitions, err = register(reg, m.transitions); err != nil {
		return nil, err
	}
	if m.absorbed, err = register(reg, m.absorbed); err != nil {
		return nil, err
	}
	return m, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *Metrics) transition(to Phase) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to.String()).Inc()
}

func (m *Metrics) absorbedFailure(reason FailureReason) {
	if m == nil {
		return
	}
	m.absorbed.WithLabelValues(string(reason)).Inc()
}
