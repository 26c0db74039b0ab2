package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/openfroyo/confpatch/pkg/blockpatch"
)

// Watch applies d to path immediately and again every time the file changes,
// until ctx is cancelled. onOutcome, if not nil, is called after each Apply.
//
// The parent directory is watched rather than the file itself, because
// editors and package managers usually replace configuration files by rename.
// Our own atomic writes trigger one more Apply, which finds nothing to do.
func (e *Engine) Watch(ctx context.Context, path string, d blockpatch.Directive, opts Options, onOutcome func(*Outcome, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	// Writes land on a symlink's target, so that is the file to watch.
	watched := abs
	if target, err := filepath.EvalSymlinks(abs); err == nil {
		watched = target
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(watched)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(watched), err)
	}

	logger := e.logger.With().Str("path", abs).Str("block", d.Block).Logger()
	logger.Info().Dur("debounce", e.debounce).Msg("Watching configuration file")

	apply := func() {
		out, err := e.Apply(ctx, abs, d, opts)
		if onOutcome != nil {
			onOutcome(out, err)
		}
	}
	apply()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopped watching")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != watched || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debug().Str("op", event.Op.String()).Msg("Configuration file changed")

			if timer == nil {
				timer = time.NewTimer(e.debounce)
			} else {
				timer.Reset(e.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			apply()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}
