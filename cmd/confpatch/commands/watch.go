package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/openfroyo/confpatch/pkg/engine"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var (
		af       applyFlags
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Keep a file patched as it changes",
		Long: `Apply the patch now and again every time the file is written or replaced.

Use this while other tooling (package upgrades, templating) may rewrite
the file. Stops on SIGINT or SIGTERM.`,
		Example: `  # Watch nginx.conf with backups
  confpatch watch /etc/nginx/nginx.conf --backup

  # Record every repair in the journal
  confpatch watch /etc/nginx/nginx.conf --journal /var/lib/confpatch/journal.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, r, err := resolveDirective()
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve path: %w", err)
			}

			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			eng := engine.New(rt.logger, rt.engineOptions(engine.WithWatchDebounce(debounce))...)
			opts := engine.Options{
				Backup: af.backup || r.Backup,
				Diff:   af.diff,
				Recipe: r.Label(),
			}
			ctx := rt.logger.WithContext(cmd.Context())
			w := cmd.OutOrStdout()
			return eng.Watch(ctx, path, d, opts, func(out *engine.Outcome, err error) {
				if err != nil {
					// Already logged by the engine; keep watching.
					return
				}
				if err := printOutcome(w, out); err != nil {
					zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to print outcome")
				}
			})
		},
	}

	cmd.Flags().BoolVar(&af.backup, "backup", false, "copy the file to <file>.bak before each rewrite")
	cmd.Flags().BoolVar(&af.diff, "diff", false, "print a unified diff of each change")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period after the last change before patching")

	return cmd
}
