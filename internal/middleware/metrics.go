package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds the directory's request collectors.
type HTTPMetrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rateLimited prometheus.Counter
}

// NewHTTPMetrics registers the request collectors with reg, reusing any that
// are already registered.
func NewHTTPMetrics(reg prometheus.Registerer) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabapp",
			Subsystem: "directory",
			Name:      "requests_total",
			Help:      "HTTP requests served by the directory",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tabapp",
			Subsystem: "directory",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tabapp",
			Subsystem: "directory",
			Name:      "rate_limited_total",
			Help:      "Credential lookups rejected by the rate limiter",
		}),
	}
	var err error
	if m.requests, err = reuse(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = reuse(reg, m.duration); err != nil {
		return nil, err
	}
	if m.rateLimited, err = reuse(reg, m.rateLimited); err != nil {
		return nil, err
	}
	return m, nil
}

func reuse[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Handler observes every request after the rest of the chain has run.
func (m *HTTPMetrics) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if err != nil && errors.As(err, &fe) {
			status = fe.Code
		}
		route := c.Route().Path
		m.requests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *HTTPMetrics) limited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
