// Package telemetry exposes the Prometheus collectors of the server and
// forwards event bus traffic to an MQTT broker.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "brickd").
	Namespace string

	// Registry receives the collectors. A private registry is created when nil.
	Registry *prometheus.Registry
}

// MetricsOption configures MetricsConfig.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the server's Prometheus collectors. All methods are safe on a
// nil receiver so components can run without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	playersOnline     prometheus.Gauge
	framesReceived    prometheus.Counter
	bytesDiscarded    prometheus.Counter
	packetsDispatched *prometheus.CounterVec
	packetsDropped    *prometheus.CounterVec
	authResults       *prometheus.CounterVec
	bytesSent         prometheus.Counter
	chatMessages      prometheus.Counter
}

// NewMetrics creates and registers the collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := MetricsConfig{Namespace: "brickd"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		registry: cfg.Registry,

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted client connections",
		}),
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "connections_active",
			Help:      "Number of open client connections",
		}),
		playersOnline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "players_online",
			Help:      "Number of authenticated players",
		}),
		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_received_total",
			Help:      "Total number of inbound frames",
		}),
		bytesDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "bytes_discarded_total",
			Help:      "Inbound bytes dropped because a frame never completed",
		}),
		packetsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "packets_dispatched_total",
			Help:      "Inbound packets handled, by packet type",
		}, []string{"type"}),
		packetsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "packets_dropped_total",
			Help:      "Inbound packets dropped, by reason",
		}, []string{"reason"}),
		authResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "auth_results_total",
			Help:      "Authentication attempts, by result",
		}, []string{"result"}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "bytes_sent_total",
			Help:      "Total bytes written to client sockets",
		}),
		chatMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "chat_messages_total",
			Help:      "Chat messages broadcast",
		}),
	}
}

// Handler returns the HTTP handler that exposes the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

// SetPlayersOnline records the current player count.
func (m *Metrics) SetPlayersOnline(n int) {
	if m == nil {
		return
	}
	m.playersOnline.Set(float64(n))
}

func (m *Metrics) FramesReceived(n int) {
	if m == nil {
		return
	}
	m.framesReceived.Add(float64(n))
}

func (m *Metrics) BytesDiscarded(n int) {
	if m == nil {
		return
	}
	m.bytesDiscarded.Add(float64(n))
}

func (m *Metrics) PacketDispatched(packetType string) {
	if m == nil {
		return
	}
	m.packetsDispatched.WithLabelValues(packetType).Inc()
}

func (m *Metrics) PacketDropped(reason string) {
	if m == nil {
		return
	}
	m.packetsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) AuthResult(result string) {
	if m == nil {
		return
	}
	m.authResults.WithLabelValues(result).Inc()
}

func (m *Metrics) BytesSent(n int) {
	if m == nil {
		return
	}
	m.bytesSent.Add(float64(n))
}

func (m *Metrics) ChatMessage() {
	if m == nil {
		return
	}
	m.chatMessages.Inc()
}
