package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run results used as metric label values.
const (
	ResultChanged   = "changed"
	ResultUnchanged = "unchanged"
	ResultError     = "error"
)

// Metrics provides Prometheus metrics for patch runs.
type Metrics struct {
	config MetricsConfig

	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	neutralized   *prometheus.CounterVec
	inserted      *prometheus.CounterVec
	errorsByKind  *prometheus.CounterVec
	lastRunResult *prometheus.GaugeVec
	lastRunTime   *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		// No-op metrics instance
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of patch runs by result",
			},
			[]string{"block", "result"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of patch runs in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"block"},
		),
		neutralized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "directives_neutralized_total",
				Help:      "Total number of directive lines commented out because they were outside the target block",
			},
			[]string{"block"},
		),
		inserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "directives_inserted_total",
				Help:      "Total number of directive lines inserted into the target block",
			},
			[]string{"block"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of failed patch runs by error kind",
			},
			[]string{"kind"},
		),
		lastRunResult: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_success",
				Help:      "Whether the last run against a file succeeded (1) or failed (0)",
			},
			[]string{"path"},
		),
		lastRunTime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last run against a file",
			},
			[]string{"path"},
		),
	}

	registry.MustRegister(
		m.runs,
		m.runDuration,
		m.neutralized,
		m.inserted,
		m.errorsByKind,
		m.lastRunResult,
		m.lastRunTime,
	)

	return m
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(path, block, result string, neutralized int, inserted bool, duration time.Duration) {
	if m.runs == nil {
		return
	}
	m.runs.WithLabelValues(block, result).Inc()
	m.runDuration.WithLabelValues(block).Observe(duration.Seconds())
	m.neutralized.WithLabelValues(block).Add(float64(neutralized))
	if inserted {
		m.inserted.WithLabelValues(block).Inc()
	}
	m.markRun(path, true)
}

// RecordError records a failed run.
func (m *Metrics) RecordError(path, block, kind string, duration time.Duration) {
	if m.runs == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.runs.WithLabelValues(block, ResultError).Inc()
	m.runDuration.WithLabelValues(block).Observe(duration.Seconds())
	m.errorsByKind.WithLabelValues(kind).Inc()
	m.markRun(path, false)
}

func (m *Metrics) markRun(path string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	m.lastRunResult.WithLabelValues(path).Set(v)
	m.lastRunTime.WithLabelValues(path).SetToCurrentTime()
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Flush writes the metrics to the configured textfile, if any.
func (m *Metrics) Flush() error {
	if m.registry == nil || m.config.TextfilePath == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.config.TextfilePath, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
