// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engine (external process) metrics
	EngineInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betbridge_engine_invocations_total",
			Help: "Total number of external engine invocations by engine and outcome",
		},
		[]string{"engine", "outcome"}, // outcome: exited, timed_out, start_failed
	)

	EngineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "betbridge_engine_duration_seconds",
			Help:    "Wall-clock duration of external engine invocations",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 600},
		},
		[]string{"engine"},
	)

	EngineInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "betbridge_engine_inflight",
			Help: "Number of engine processes currently running",
		},
	)

	// Classified outcomes, as seen by request handlers
	EngineOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betbridge_engine_outcomes_total",
			Help: "Classified engine outcomes (success, process_failed, parse_failed, logically_failed)",
		},
		[]string{"engine", "outcome"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betbridge_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "betbridge_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Pipeline job metrics
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betbridge_jobs_total",
			Help: "Finished pipeline jobs by pipeline and final state",
		},
		[]string{"pipeline", "state"},
	)

	JobsRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "betbridge_jobs_running",
			Help: "1 while a pipeline job is running",
		},
		[]string{"pipeline"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "betbridge_job_duration_seconds",
			Help:    "Duration of pipeline jobs",
			Buckets: []float64{1, 10, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"pipeline"},
	)

	// Backup metrics
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betbridge_backups_total",
			Help: "Analytics store backups by result",
		},
		[]string{"result"},
	)

	BackupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "betbridge_backup_last_success_timestamp_seconds",
			Help: "Unix time of the last successful backup",
		},
	)
)

// RecordEngineInvocation records one finished (or unstartable) engine process.
func RecordEngineInvocation(engine, outcome string, duration time.Duration) {
	EngineInvocations.WithLabelValues(engine, outcome).Inc()
	EngineDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

// RecordEngineOutcome records a classified engine outcome.
func RecordEngineOutcome(engine, outcome string) {
	EngineOutcomes.WithLabelValues(engine, outcome).Inc()
}

// RecordAPIRequest records API request metrics
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordJobStarted marks a pipeline as running
func RecordJobStarted(pipeline string) {
	JobsRunning.WithLabelValues(pipeline).Set(1)
}

// RecordJobFinished records the terminal state of a pipeline job
func RecordJobFinished(pipeline, state string, duration time.Duration) {
	JobsRunning.WithLabelValues(pipeline).Set(0)
	JobsTotal.WithLabelValues(pipeline, state).Inc()
	JobDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}

// RecordBackup records a backup attempt
func RecordBackup(err error, at time.Time) {
	if err != nil {
		BackupsTotal.WithLabelValues("failure").Inc()
		return
	}
	BackupsTotal.WithLabelValues("success").Inc()
	BackupLastSuccess.Set(float64(at.Unix()))
}
