package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the poll-loop collectors. A nil *Metrics is valid and
// turns every method into a no-op, so metrics stay optional in wiring.
type Metrics struct {
	pollCycles       *prometheus.CounterVec
	fetchFailures    *prometheus.CounterVec
	fetchRetries     prometheus.Counter
	fetchDuration    prometheus.Histogram
	renderFailures   *prometheus.CounterVec
	batteryLevel     prometheus.Gauge
	consecutiveFails prometheus.Gauge
	lastSuccess      prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		pollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkbatt_poll_cycles_total",
			Help: "Total poll cycles by result.",
		}, []string{"result"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkbatt_fetch_failures_total",
			Help: "Total failed fetch cycles by failure kind.",
		}, []string{"kind"}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkbatt_fetch_retries_total",
			Help: "Total retry attempts across all cycles.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inkbatt_fetch_duration_seconds",
			Help:    "Duration of the fetch phase of a cycle, retries included.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		renderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkbatt_render_failures_total",
			Help: "Total contained render faults by reason.",
		}, []string{"reason"}),
		batteryLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inkbatt_battery_percent",
			Help: "Most recently fetched battery state of charge.",
		}),
		consecutiveFails: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inkbatt_consecutive_failures",
			Help: "Consecutive failed cycles since the last success.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inkbatt_last_success_timestamp_seconds",
			Help: "Unix time of the last successful fetch.",
		}),
	}

	prometheus.MustRegister(
		m.pollCycles,
		m.fetchFailures,
		m.fetchRetries,
		m.fetchDuration,
		m.renderFailures,
		m.batteryLevel,
		m.consecutiveFails,
		m.lastSuccess,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordCycle(result string) {
	if m == nil {
		return
	}
	m.pollCycles.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordFetchFailure(kind string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.fetchRetries.Inc()
}

func (m *Metrics) ObserveFetchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordRenderFailure(reason string) {
	if m == nil {
		return
	}
	m.renderFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetBatteryLevel(v float64) {
	if m == nil {
		return
	}
	m.batteryLevel.Set(v)
}

func (m *Metrics) SetConsecutiveFailures(n int) {
	if m == nil {
		return
	}
	m.consecutiveFails.Set(float64(n))
}

func (m *Metrics) SetLastSuccess(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.Set(float64(t.Unix()))
}
