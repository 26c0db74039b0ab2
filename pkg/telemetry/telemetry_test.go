package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: true},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "stdout tracing", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "stdout"
		}},
		{name: "otlp without endpoint", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}, wantErr: true},
		{name: "unknown exporter", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, wantErr: true},
		{name: "metrics without namespace", mutate: func(c *Config) { c.Metrics.Namespace = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := ComponentLogger(newLogger(&buf, LoggingConfig{Level: "warn", Format: "json"}), "engine")

	logger.Info().Msg("dropped")
	logger.Warn().Str("path", "/etc/nginx/nginx.conf").Msg("kept")

	out := strings.TrimSpace(buf.String())
	require.NotEmpty(t, out)
	require.Equal(t, 1, strings.Count(out, "\n")+1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "/etc/nginx/nginx.conf", entry["path"])
	assert.Equal(t, "kept", entry["message"])
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "confpatch.log")
	logger, closer, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info().Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "confpatch.prom")
	m := NewMetrics(MetricsConfig{Enabled: true, Namespace: "confpatch", TextfilePath: path})

	m.RecordRun("/etc/nginx/nginx.conf", "http", ResultChanged, 2, true, 3*time.Millisecond)
	m.RecordRun("/etc/nginx/nginx.conf", "http", ResultUnchanged, 0, false, time.Millisecond)
	m.RecordError("/etc/nginx/other.conf", "http", "structural", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("http", ResultChanged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("http", ResultError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.neutralized.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inserted.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsByKind.WithLabelValues("structural")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lastRunResult.WithLabelValues("/etc/nginx/other.conf")))

	require.NoError(t, m.Flush())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `confpatch_runs_total{block="http",result="changed"} 1`)
	assert.Contains(t, string(data), "confpatch_directives_inserted_total")
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, TextfilePath: filepath.Join(t.TempDir(), "x.prom")})

	m.RecordRun("/x", "http", ResultChanged, 1, true, time.Millisecond)
	m.RecordError("/x", "http", "", time.Millisecond)
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.Flush())
}

func TestTracerStdout(t *testing.T) {
	var buf bytes.Buffer
	tr, err := NewTracer(TracingConfig{Enabled: true, Exporter: "stdout"}, "confpatch", "test", &buf)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "patch.apply", AttrBlock.String("http"))
	RecordSuccess(span)
	span.End()

	require.NoError(t, tr.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "patch.apply")
	assert.Contains(t, buf.String(), "block.name")
}

func TestTracerDisabled(t *testing.T) {
	tr, err := NewTracer(TracingConfig{}, "confpatch", "test", nil)
	require.NoError(t, err)
	assert.NoError(t, tr.Shutdown(context.Background()))

	_, err = NewTracer(TracingConfig{Enabled: true, Exporter: "zipkin"}, "confpatch", "test", nil)
	assert.Error(t, err)
}
