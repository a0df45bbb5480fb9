// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the relay. All recording methods are safe on a
// nil *Metrics so the server can run without instrumentation.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the relay collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "wsrelay").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// RuntimeCollectors adds the Go runtime and process collectors.
	RuntimeCollectors bool
}

// MetricsOption configures the relay collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRuntimeCollectors toggles the Go runtime and process collectors.
func WithRuntimeCollectors(enabled bool) MetricsOption {
	return func(c *MetricsConfig) {
		c.RuntimeCollectors = enabled
	}
}

// Metrics holds the relay collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	accepted     prometheus.Counter
	closed       *prometheus.CounterVec
	handshakes   *prometheus.CounterVec
	received     prometheus.Counter
	delivered    prometheus.Counter
	sendFailures prometheus.Counter
	connections  prometheus.Gauge
	established  prometheus.Gauge
	waitEvents   prometheus.Histogram
}

// NewMetrics registers the relay collectors in a fresh registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := MetricsConfig{Namespace: "wsrelay"}
	for _, o := range opts {
		o(&cfg)
	}

	reg := prometheus.NewRegistry()
	if cfg.RuntimeCollectors {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "connections_accepted_total",
			Help:        "Total number of accepted TCP connections",
			ConstLabels: cfg.ConstLabels,
		}),

		closed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "connections_closed_total",
			Help:        "Total number of closed connections by reason",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),

		handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "handshakes_total",
			Help:        "Total number of finished WebSocket handshakes by result",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),

		received: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "messages_received_total",
			Help:        "Total number of text messages received for broadcast",
			ConstLabels: cfg.ConstLabels,
		}),

		delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "messages_delivered_total",
			Help:        "Total number of message copies written or queued to peers",
			ConstLabels: cfg.ConstLabels,
		}),

		sendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "send_failures_total",
			Help:        "Total number of broadcast sends that dropped the recipient",
			ConstLabels: cfg.ConstLabels,
		}),

		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "connections",
			Help:        "Number of connections in the connection table",
			ConstLabels: cfg.ConstLabels,
		}),

		established: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "connections_established",
			Help:        "Number of connections past the WebSocket handshake",
			ConstLabels: cfg.ConstLabels,
		}),

		waitEvents: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "poll_events",
			Help:        "Readiness events returned per poller wait",
			ConstLabels: cfg.ConstLabels,
			Buckets:     []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		}),
	}
}

// Registry returns the registry holding the relay collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
}

func (m *Metrics) ConnectionClosed(reason string) {
	if m == nil {
		return
	}
	m.closed.WithLabelValues(reason).Inc()
}

// Handshake records a finished handshake; result is "established" or "rejected".
func (m *Metrics) Handshake(result string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(result).Inc()
}

func (m *Metrics) MessageReceived() {
	if m == nil {
		return
	}
	m.received.Inc()
}

func (m *Metrics) MessagesDelivered(n int) {
	if m == nil || n == 0 {
		return
	}
	m.delivered.Add(float64(n))
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

// SetConnections publishes the table size and the established count.
func (m *Metrics) SetConnections(total, established int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(total))
	m.established.Set(float64(established))
}

func (m *Metrics) ObservePollEvents(n int) {
	if m == nil {
		return
	}
	m.waitEvents.Observe(float64(n))
}
