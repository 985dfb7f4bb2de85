package websocket

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Message directions recorded by RecordMessage.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// Metrics exposes hub activity as Prometheus collectors.
type Metrics struct {
	connections        prometheus.Counter
	active             prometheus.Gauge
	connectionDuration prometheus.Histogram
	messages           *prometheus.CounterVec
	bytes              *prometheus.CounterVec
	dropped            prometheus.Counter
}

// NewMetrics creates the hub collectors and registers them with reg.
// A nil registerer leaves them unregistered, which suits tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pvinsight",
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Total number of websocket connections accepted.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pvinsight",
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of currently connected websocket clients.",
		}),
		connectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pvinsight",
			Subsystem: "websocket",
			Name:      "connection_duration_seconds",
			Help:      "Lifetime of websocket connections.",
			Buckets:   []float64{1, 10, 60, 300, 1800, 3600},
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pvinsight",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Websocket messages by direction.",
		}, []string{"direction"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pvinsight",
			Subsystem: "websocket",
			Name:      "message_bytes_total",
			Help:      "Websocket payload bytes by direction.",
		}, []string{"direction"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pvinsight",
			Subsystem: "websocket",
			Name:      "dropped_messages_total",
			Help:      "Messages dropped because a client buffer was full.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.connections, m.active, m.connectionDuration, m.messages, m.bytes, m.dropped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordConnection records a new connection
func (m *Metrics) RecordConnection() {
	if m == nil {
		return
	}
	m.connections.Inc()
	m.active.Inc()
}

// RecordDisconnection records a disconnection and its lifetime
func (m *Metrics) RecordDisconnection(duration time.Duration) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.connectionDuration.Observe(duration.Seconds())
}

// RecordMessage counts one message of size bytes.
func (m *Metrics) RecordMessage(direction string, size int) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(direction).Inc()
	m.bytes.WithLabelValues(direction).Add(float64(size))
}

// RecordDroppedMessage records a dropped message
func (m *Metrics) RecordDroppedMessage() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
