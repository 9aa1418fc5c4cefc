// Package metrics provides Prometheus metrics for the productivity tracking service.
package metrics

import (
	"time"

	"github.com/lineops/boteo/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boteo_cycles_recorded_total",
			Help: "Total number of cycle completions recorded",
		},
		[]string{"status"},
	)
	CycleAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boteo_cycle_anomalies_total",
			Help: "Total number of cycle durations discarded by the plausibility guard",
		},
	)
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boteo_cycle_duration_seconds",
			Help:    "Validated cycle durations in seconds",
			Buckets: []float64{5, 10, 15, 20, 30, 45, 60, 90, 120, 180, 300},
		},
	)
	PausesStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boteo_pauses_started_total",
			Help: "Total number of pauses started",
		},
		[]string{"reason"},
	)
	PausesEnded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boteo_pauses_ended_total",
			Help: "Total number of pauses ended",
		},
	)
	PauseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boteo_pause_duration_seconds",
			Help:    "Closed pause durations in seconds",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		},
	)
	AlertsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boteo_alerts_enqueued_total",
			Help: "Total number of supervisor alerts enqueued",
		},
		[]string{"kind"},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boteo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boteo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	OperatorsOnPause = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "boteo_operators_on_pause",
			Help: "Number of operators with an open pause",
		},
	)
	CyclesToday = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "boteo_cycles_today",
			Help: "Number of cycle records on the current calendar date",
		},
	)
)

func RecordCycle(status model.CycleStatus, durationSeconds *float64, anomaly bool) {
	CyclesRecorded.WithLabelValues(string(status)).Inc()
	if anomaly {
		CycleAnomalies.Inc()
	}
	if durationSeconds != nil {
		CycleDuration.Observe(*durationSeconds)
	}
}

func RecordPauseStarted(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	PausesStarted.WithLabelValues(reason).Inc()
}

func RecordPauseEnded(durationSeconds int64) {
	PausesEnded.Inc()
	PauseDuration.Observe(float64(durationSeconds))
}

func RecordAlertEnqueued(kind string) {
	AlertsEnqueued.WithLabelValues(kind).Inc()
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func UpdateOperatorsOnPause(count int) {
	OperatorsOnPause.Set(float64(count))
}

func UpdateCyclesToday(count int) {
	CyclesToday.Set(float64(count))
}
