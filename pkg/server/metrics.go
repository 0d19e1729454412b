package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics wraps the Prometheus collectors exposed on /metrics. Counter and
// gauge names/shape follow gospeak's pkg/server/metrics.go, upgraded from
// hand-rolled atomics and exposition text to the real
// github.com/prometheus/client_golang registry, per DESIGN.md.
type Metrics struct {
	startTime time.Time
	registry  *prometheus.Registry

	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge
	AuthSuccessTotal  prometheus.Counter
	AuthFailedTotal   prometheus.Counter
	ChatMessagesTotal prometheus.Counter
	ChannelsCreated   prometheus.Counter
}

// NewMetrics creates a private Prometheus registry and registers every
// HubLink collector on it — a private registry rather than the package
// default so that more than one Server can exist in a process (tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),
		registry:  reg,

		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "hublink_connections_total",
			Help: "Lifetime TCP connections accepted.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hublink_connections_active",
			Help: "Current active TCP connections.",
		}),
		AuthSuccessTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "hublink_auth_success_total",
			Help: "Successful login handshakes.",
		}),
		AuthFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "hublink_auth_failed_total",
			Help: "Login handshakes rejected for bad credentials.",
		}),
		ChatMessagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "hublink_chat_messages_total",
			Help: "Chat lines broadcast to a channel.",
		}),
		ChannelsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "hublink_channels_created_total",
			Help: "Channels created via @create.",
		}),
	}
}

// Uptime returns the time elapsed since the metrics registry was created,
// which tracks Server process lifetime closely enough for reporting.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
