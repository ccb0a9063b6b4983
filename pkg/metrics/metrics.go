// Package metrics instruments sessions with Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Join results.
const (
	JoinAccepted      = "accepted"
	JoinInvalidUser   = "invalid_user"
	JoinDuplicateUser = "duplicate_user"
)

type Config struct {
	// Namespace is the metrics namespace (default: "collab").
	Namespace string
	Subsystem string
	// ConstLabels are added to every metric, e.g. the session name.
	ConstLabels prometheus.Labels
	// Registry defaults to prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "collab",
		Subsystem: "session",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics records what happens in a session. A nil *Metrics records nothing, so callers never
// need to check whether instrumentation is on.
type Metrics struct {
	users           prometheus.Gauge
	pending         prometheus.Gauge
	joins           *prometheus.CounterVec
	leaves          prometheus.Counter
	empties         prometheus.Counter
	handshakes      *prometheus.CounterVec
	controlFailures prometheus.Counter
}

// New registers the session metrics. Registering twice on one registry with the same
// constant labels panics.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		users: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "users",
			Help:        "Number of joined users",
			ConstLabels: config.ConstLabels,
		}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pending_connections",
			Help:        "Number of connections that finished the handshake but have not joined",
			ConstLabels: config.ConstLabels,
		}),
		joins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "joins_total",
			Help:        "Join requests by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),
		leaves: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "leaves_total",
			Help:        "Joined users that disconnected",
			ConstLabels: config.ConstLabels,
		}),
		empties: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "empty_total",
			Help:        "Times the session became empty and was reset",
			ConstLabels: config.ConstLabels,
		}),
		handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handshakes_total",
			Help:        "Completed handshakes by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),
		controlFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "control_failures_total",
			Help:        "Session control messages that could not be routed",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) SetUsers(n int) {
	if m != nil {
		m.users.Set(float64(n))
	}
}

func (m *Metrics) SetPending(n int) {
	if m != nil {
		m.pending.Set(float64(n))
	}
}

func (m *Metrics) RecordJoin(result string) {
	if m != nil {
		m.joins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) RecordLeave() {
	if m != nil {
		m.leaves.Inc()
	}
}

func (m *Metrics) RecordEmpty() {
	if m != nil {
		m.empties.Inc()
	}
}

func (m *Metrics) RecordHandshake(result string) {
	if m != nil {
		m.handshakes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) RecordControlFailure() {
	if m != nil {
		m.controlFailures.Inc()
	}
}
