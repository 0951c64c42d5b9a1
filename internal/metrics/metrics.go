// Package metrics holds the Prometheus collectors of the session and the
// request gateway. A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Refresh outcomes
const (
	RefreshSuccess     = "success"
	RefreshRejected    = "rejected"
	RefreshRateLimited = "rate_limited"
	RefreshError       = "error"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "assessly").
	Namespace string

	// Registry receives the collectors. Default: a fresh registry.
	Registry *prometheus.Registry
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	refreshShared   prometheus.Counter
	checks          *prometheus.CounterVec
	logouts         prometheus.Counter
}

// New registers the collectors and returns them.
func New(opts ...Option) *Metrics {
	cfg := Config{Namespace: "assessly"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(cfg.Registry)

	return &Metrics{
		registry: cfg.Registry,

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "HTTP requests issued by the gateway, by attempt number and status",
		}, []string{"attempt", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Duration of gateway HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "refreshes_total",
			Help:      "Token refresh requests, by outcome",
		}, []string{"outcome"}),

		refreshShared: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "refresh_shared_total",
			Help:      "Callers that received the result of a refresh shared with other callers",
		}),

		checks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "checks_total",
			Help:      "Identity checks, by observed status",
		}, []string{"status"}),

		logouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Session logouts, voluntary or forced",
		}),
	}
}

// ObserveRequest records one HTTP request. status 0 means no response.
func (m *Metrics) ObserveRequest(method string, attempt, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(strconv.Itoa(attempt), statusLabel(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveRefresh records the outcome of one refresh request.
func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// ObserveRefreshShared records a caller that received a shared refresh result.
func (m *Metrics) ObserveRefreshShared() {
	if m == nil {
		return
	}
	m.refreshShared.Inc()
}

// ObserveCheck records an identity check. status 0 means no response.
func (m *Metrics) ObserveCheck(status int) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(statusLabel(status)).Inc()
}

// ObserveLogout records a logout.
func (m *Metrics) ObserveLogout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteText writes every gathered family in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric family %s: %w", mf.GetName(), err)
		}
	}

	return nil
}

func statusLabel(status int) string {
	if status == 0 {
		return "network_error"
	}
	return strconv.Itoa(status)
}
