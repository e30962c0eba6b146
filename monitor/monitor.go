// monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/beatroom/logger"
	"github.com/wfunc/beatroom/models"
)

type Metrics struct {
	OnlinePlayers     prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	MessagesReceived  *prometheus.CounterVec
	MessageLatency    prometheus.Histogram
	CountdownsStarted prometheus.Counter
	RoundsStarted     *prometheus.CounterVec
	Errors            *prometheus.CounterVec
}

func NewMetrics(namespace string, reg prometheus.Registerer, startTime time.Time) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of live rooms",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Client messages received, by event",
		}, []string{"event"}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message handling latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		CountdownsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "countdowns_started_total",
			Help:      "Countdowns started",
		}),
		RoundsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_started_total",
			Help:      "Rounds started, by room mode",
		}, []string{"mode"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Error replies sent to clients, by kind",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.MessagesReceived,
		m.MessageLatency,
		m.CountdownsStarted,
		m.RoundsStarted,
		m.Errors,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the process started",
		}, func() float64 { return time.Since(startTime).Seconds() }),
	)

	return m
}

// Monitor owns the metrics and the listener that exposes them.
type Monitor struct {
	metrics  *Metrics
	gatherer prometheus.Gatherer
	server   *http.Server
}

// NewMonitor registers on reg; pass prometheus.NewRegistry() in tests.
func NewMonitor(namespace string, reg *prometheus.Registry) *Monitor {
	return &Monitor{
		metrics:  NewMetrics(namespace, reg, time.Now()),
		gatherer: reg,
	}
}

func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// Handler serves the registry in the Prometheus text format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	m.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Log.Infof("Metrics listening on %s", addr)
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("metrics server: %v", err)
		}
	}()
}

func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

func (m *Monitor) IncOnlinePlayers() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) IncMessagesReceived(event string) {
	m.metrics.MessagesReceived.WithLabelValues(event).Inc()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

func (m *Monitor) IncErrors(kind string) {
	m.metrics.Errors.WithLabelValues(kind).Inc()
}

// CountdownStarted and RoundStarted let the monitor observe room lifecycles.
func (m *Monitor) CountdownStarted(code string) {
	m.metrics.CountdownsStarted.Inc()
}

func (m *Monitor) RoundStarted(record models.RoundRecord) {
	m.metrics.RoundsStarted.WithLabelValues(record.Mode).Inc()
}
