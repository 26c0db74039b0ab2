// Package telemetry provides logging, metrics and tracing for confpatch.
//
// Logging uses zerolog. NewLogger builds a logger from LoggingConfig and
// ComponentLogger tags child loggers:
//
//	logger, closer, err := telemetry.NewLogger(cfg.Logging)
//	defer closer.Close()
//	eng := telemetry.ComponentLogger(logger, "engine")
//
// Metrics are Prometheus collectors on a private registry. A provisioning run
// is a short-lived process, so instead of serving /metrics the registry is
// written to a node_exporter textfile after each run:
//
//	m := telemetry.NewMetrics(telemetry.MetricsConfig{
//	    Enabled:      true,
//	    Namespace:    "confpatch",
//	    TextfilePath: "/var/lib/node_exporter/textfile/confpatch.prom",
//	})
//	m.RecordRun(path, "http", telemetry.ResultChanged, 1, true, elapsed)
//	_ = m.Flush()
//
// Tracing uses OpenTelemetry. NewTracer installs a global provider with a
// stdout or OTLP exporter; StartSpan works against whatever provider is
// installed and is a no-op otherwise.
package telemetry
