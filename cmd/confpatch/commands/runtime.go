package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openfroyo/confpatch/pkg/blockpatch"
	"github.com/openfroyo/confpatch/pkg/engine"
	"github.com/openfroyo/confpatch/pkg/recipe"
	"github.com/openfroyo/confpatch/pkg/stores"
	"github.com/openfroyo/confpatch/pkg/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// runtime holds everything a patching command needs.
type runtime struct {
	logger  zerolog.Logger
	engine  *engine.Engine
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	options []engine.Option
	closers []io.Closer
}

func telemetryConfig() (*telemetry.Config, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = buildVersion
	if verbose {
		cfg.Logging.Level = "debug"
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	cfg.Logging.Format = rflags.logFormat
	cfg.Metrics.TextfilePath = rflags.metricsFile

	if rflags.trace != "" && rflags.trace != "none" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = rflags.trace
		cfg.Tracing.Endpoint = rflags.traceEndpoint
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	return cfg, nil
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := telemetryConfig()
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	rt := &runtime{
		logger:  logger.With().Str("service", cfg.ServiceName).Logger(),
		metrics: telemetry.NewMetrics(cfg.Metrics),
		closers: []io.Closer{logCloser},
	}

	rt.tracer, err = telemetry.NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cmd.ErrOrStderr())
	if err != nil {
		rt.Close(cmd.Context())
		return nil, err
	}

	rt.options = []engine.Option{engine.WithMetrics(rt.metrics)}
	if rflags.journal != "" {
		store, err := openJournal(cmd.Context(), rflags.journal)
		if err != nil {
			rt.Close(cmd.Context())
			return nil, err
		}
		rt.closers = append(rt.closers, store)
		rt.options = append(rt.options, engine.WithJournal(store))
	}

	rt.engine = engine.New(rt.logger, rt.options...)
	return rt, nil
}

// engineOptions returns the runtime's engine options followed by extra.
func (rt *runtime) engineOptions(extra ...engine.Option) []engine.Option {
	opts := make([]engine.Option, 0, len(rt.options)+len(extra))
	opts = append(opts, rt.options...)
	return append(opts, extra...)
}

// Close flushes traces and releases the journal and log file.
func (rt *runtime) Close(ctx context.Context) {
	if rt.tracer != nil {
		if err := rt.tracer.Shutdown(context.WithoutCancel(ctx)); err != nil {
			rt.logger.Warn().Err(err).Msg("Failed to shut down tracer")
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].Close()
	}
}

// openJournal opens the SQLite journal at path, creating it on first use.
func openJournal(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// resolveDirective builds the directive from the recipe file, if any, with
// directive flags layered on top. Without either, the default preset applies.
func resolveDirective() (blockpatch.Directive, *recipe.Recipe, error) {
	loader := recipe.NewLoader()

	r := &recipe.Recipe{}
	if configPath != "" {
		var err error
		if r, err = loader.LoadFile(configPath); err != nil {
			return blockpatch.Directive{}, nil, err
		}
	}

	if dflags.preset != "" {
		r.Preset = dflags.preset
	}
	if dflags.block != "" {
		r.Block = dflags.block
	}
	if dflags.pattern != "" {
		r.Pattern = dflags.pattern
	}
	if dflags.literal != "" {
		r.Literal = dflags.literal
	}
	if dflags.commentPrefix != "" {
		r.CommentPrefix = dflags.commentPrefix
	}
	if r.Preset == "" && r.Block == "" && r.Pattern == "" && r.Literal == "" {
		r.Preset = blockpatch.DefaultPresetName
	}

	if err := loader.Validate(r); err != nil {
		return blockpatch.Directive{}, nil, err
	}
	d, err := r.Directive()
	if err != nil {
		return blockpatch.Directive{}, nil, err
	}
	return d, r, nil
}
