package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/openfroyo/confpatch/pkg/blockpatch"
	"github.com/openfroyo/confpatch/pkg/fileio"
	"github.com/openfroyo/confpatch/pkg/stores"
	"github.com/openfroyo/confpatch/pkg/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Journal records finished runs.
type Journal interface {
	CreateRun(ctx context.Context, run *stores.Run) error
}

// Options control a single Apply.
type Options struct {
	// DryRun computes the result without touching the file.
	DryRun bool

	// Backup copies the file to <path>.bak before rewriting it. For a symlink
	// the backup sits next to the file the link points to.
	Backup bool

	// Diff fills Outcome.Diff with a unified diff of the change.
	Diff bool

	// Recipe is a label recorded in logs and the journal.
	Recipe string
}

// Outcome describes a finished Apply.
type Outcome struct {
	RunID          string             `json:"run_id"`
	Path           string             `json:"path"`
	Block          string             `json:"block"`
	Status         stores.RunStatus   `json:"status"`
	Result         *blockpatch.Result `json:"result,omitempty"`
	Written        bool               `json:"written"`
	BackupPath     string             `json:"backup_path,omitempty"`
	ChecksumBefore string             `json:"checksum_before,omitempty"`
	ChecksumAfter  string             `json:"checksum_after,omitempty"`
	Diff           string             `json:"diff,omitempty"`
	Duration       time.Duration      `json:"duration"`
}

// Engine runs the read, patch and write cycle against configuration files.
type Engine struct {
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	journal  Journal
	debounce time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records every run in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithJournal records every run in j.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithWatchDebounce sets how long Watch waits after the last change event.
func WithWatchDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// New creates an engine.
func New(logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:   telemetry.ComponentLogger(logger, "engine"),
		metrics:  telemetry.NewMetrics(telemetry.MetricsConfig{}),
		debounce: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply ensures d holds in the file at path. The file is read once, patched
// in memory, and replaced atomically only if the patch changed something.
// Structural and I/O failures leave the file untouched.
func (e *Engine) Apply(ctx context.Context, path string, d blockpatch.Directive, opts Options) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{
		RunID: uuid.NewString(),
		Path:  path,
		Block: d.Block,
	}

	ctx, span := telemetry.StartSpan(ctx, "confpatch.apply",
		telemetry.AttrRunID.String(out.RunID),
		telemetry.AttrPath.String(path),
		telemetry.AttrBlock.String(d.Block),
	)
	defer span.End()

	logger := e.logger.With().
		Str("run_id", out.RunID).
		Str("path", path).
		Str("block", d.Block).
		Logger()

	err := e.apply(ctx, path, d, opts, out, logger)
	out.Duration = time.Since(start)
	e.finish(ctx, span, logger, out, opts, start, err)
	return out, err
}

func (e *Engine) apply(ctx context.Context, path string, d blockpatch.Directive, opts Options, out *Outcome, logger zerolog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := fileio.Read(path)
	if err != nil {
		return err
	}
	out.ChecksumBefore = f.Checksum
	logger.Debug().Int("bytes", len(f.Content)).Msg("Read configuration file")

	res, err := blockpatch.Patch(string(f.Content), d)
	if err != nil {
		var pe *blockpatch.PatchError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return err
	}
	out.Result = res

	if opts.Diff || opts.DryRun {
		diff, err := UnifiedDiff(path, string(f.Content), res.Text)
		if err != nil {
			return err
		}
		out.Diff = diff
	}

	if !res.Changed {
		out.Status = stores.RunStatusUnchanged
		out.ChecksumAfter = f.Checksum
		return nil
	}

	if opts.DryRun {
		out.Status = stores.RunStatusWouldChange
		out.ChecksumAfter = fileio.Checksum([]byte(res.Text))
		return nil
	}

	if opts.Backup {
		backupPath, err := fileio.Backup(f.WritePath())
		if err != nil {
			return err
		}
		out.BackupPath = backupPath
		logger.Debug().Str("backup", backupPath).Msg("Created backup")
	}

	f.Content = []byte(res.Text)
	if err := fileio.Replace(f); err != nil {
		return err
	}
	out.Written = true
	out.Status = stores.RunStatusChanged
	out.ChecksumAfter = fileio.Checksum(f.Content)
	return nil
}

// finish logs, traces, meters and journals a run.
func (e *Engine) finish(ctx context.Context, span trace.Span, logger zerolog.Logger, out *Outcome, opts Options, started time.Time, runErr error) {
	run := &stores.Run{
		ID:             out.RunID,
		Path:           out.Path,
		Recipe:         opts.Recipe,
		Block:          out.Block,
		Status:         out.Status,
		ChecksumBefore: out.ChecksumBefore,
		ChecksumAfter:  out.ChecksumAfter,
		BackupPath:     out.BackupPath,
		StartedAt:      started.UTC(),
		Duration:       out.Duration,
	}

	if runErr != nil {
		kind := string(blockpatch.KindOf(runErr))
		out.Status = stores.RunStatusFailed
		run.Status = stores.RunStatusFailed
		msg := runErr.Error()
		run.Error = &msg

		telemetry.RecordError(span, runErr)
		span.SetAttributes(telemetry.AttrErrorKind.String(kind))
		e.metrics.RecordError(out.Path, out.Block, kind, out.Duration)
		logger.Error().Err(runErr).Str("kind", kind).Msg("Patch failed")
	} else {
		res := out.Result
		run.Neutralized = len(res.Neutralized)
		run.Inserted = res.Inserted

		span.SetAttributes(
			telemetry.AttrChanged.Bool(res.Changed),
			telemetry.AttrNeutralized.Int(len(res.Neutralized)),
			telemetry.AttrInserted.Bool(res.Inserted),
		)
		telemetry.RecordSuccess(span)

		result := telemetry.ResultUnchanged
		if res.Changed {
			result = telemetry.ResultChanged
		}
		if !opts.DryRun {
			e.metrics.RecordRun(out.Path, out.Block, result, len(res.Neutralized), res.Inserted, out.Duration)
		}

		if res.Span.InsideMatches > 1 {
			logger.Warn().
				Int("count", res.Span.InsideMatches).
				Msg("Directive appears more than once inside the block; duplicates left in place")
		}
		logger.Info().
			Str("status", string(out.Status)).
			Int("neutralized", len(res.Neutralized)).
			Bool("inserted", res.Inserted).
			Dur("duration", out.Duration).
			Msg("Patch finished")
	}

	if e.journal != nil {
		if err := e.journal.CreateRun(ctx, run); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run in journal")
		}
	}
	if err := e.metrics.Flush(); err != nil {
		logger.Warn().Err(err).Msg("Failed to write metrics")
	}
}
