package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bridge's Prometheus collectors. Each instance owns its
// registry so several bridges (and tests) can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	// Protocol
	MessagesDispatched *prometheus.CounterVec
	MessagesSent       *prometheus.CounterVec
	DecodeErrors       prometheus.Counter

	// Connection
	ConnectionState   *prometheus.GaugeVec
	ConnectionEvents  *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter

	// Pipeline
	Evals          *prometheus.CounterVec
	EvalDuration   prometheus.Histogram
	Reloads        *prometheus.CounterVec
	ReloadDuration prometheus.Histogram
	ReloadQueue    prometheus.Gauge

	// Status endpoint
	StatusRequests *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates a new metrics collector with a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		Registry:  reg,
		startTime: time.Now(),

		MessagesDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbridge_messages_dispatched_total",
				Help: "Inbound messages dispatched, by op",
			},
			[]string{"op"},
		),
		MessagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbridge_messages_sent_total",
				Help: "Outbound responses, by transport and result",
			},
			[]string{"transport", "result"},
		),
		DecodeErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "devbridge_decode_errors_total",
				Help: "Inbound messages that could not be decoded",
			},
		),
		ConnectionState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "devbridge_connection_state",
				Help: "1 for the current connection state, 0 otherwise",
			},
			[]string{"state"},
		),
		ConnectionEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbridge_connection_events_total",
				Help: "Connected and disconnected signals, by transport",
			},
			[]string{"event", "transport"},
		),
		ReconnectAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "devbridge_reconnect_attempts_total",
				Help: "HTTP connect attempts scheduled after a failure",
			},
		),
		Evals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbridge_evals_total",
				Help: "Evaluations, by result status",
			},
			[]string{"status"},
		),
		EvalDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "devbridge_eval_duration_seconds",
				Help:    "Evaluation duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
		),
		Reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbridge_reloads_total",
				Help: "Completed reload operations, by outcome",
			},
			[]string{"outcome"},
		),
		ReloadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "devbridge_reload_duration_seconds",
				Help:    "Reload operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
		),
		ReloadQueue: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "devbridge_reload_queue_depth",
				Help: "Reload operations waiting or running",
			},
		),
		StatusRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbridge_status_requests_total",
				Help: "Status endpoint requests, by path and status code",
			},
			[]string{"path", "status"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "devbridge_uptime_seconds",
			Help: "Seconds since the bridge was created",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordDispatch counts one dispatched message.
func (m *Metrics) RecordDispatch(op string) {
	if op == "" {
		op = "none"
	}
	m.MessagesDispatched.WithLabelValues(op).Inc()
}

// RecordSend counts one outbound response.
func (m *Metrics) RecordSend(transport string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.MessagesSent.WithLabelValues(transport, result).Inc()
}

// SetConnectionState marks state as the current one.
func (m *Metrics) SetConnectionState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(s).Set(v)
	}
}

// RecordConnectionEvent counts a connected/disconnected signal.
func (m *Metrics) RecordConnectionEvent(event, transport string) {
	m.ConnectionEvents.WithLabelValues(event, transport).Inc()
}

// RecordEval records an evaluation outcome.
func (m *Metrics) RecordEval(status string, duration time.Duration) {
	m.Evals.WithLabelValues(status).Inc()
	m.EvalDuration.Observe(duration.Seconds())
}

// RecordReload records a reload outcome.
func (m *Metrics) RecordReload(ok bool, duration time.Duration) {
	outcome := "loaded"
	if !ok {
		outcome = "failed"
	}
	m.Reloads.WithLabelValues(outcome).Inc()
	m.ReloadDuration.Observe(duration.Seconds())
}
