package commands

import (
	"fmt"
	"path/filepath"

	"github.com/openfroyo/confpatch/pkg/engine"
	"github.com/openfroyo/confpatch/pkg/stores"
	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Report whether a file needs patching",
		Long: `Dry-run the patch and print a unified diff of what would change.

Exits 0 when the file is already compliant and 1 when a change is needed,
which makes it usable as a drift probe in provisioning checks.`,
		Example: `  # Check nginx.conf
  confpatch check /etc/nginx/nginx.conf

  # Machine-readable result
  confpatch check /etc/nginx/nginx.conf --json`,
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

			out, err := rt.engine.Apply(cmd.Context(), path, d, engine.Options{
				DryRun: true,
				Diff:   true,
				Recipe: r.Label(),
			})
			if err != nil {
				return err
			}
			if err := printOutcome(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if out.Status == stores.RunStatusWouldChange {
				return ErrChangesPending
			}
			return nil
		},
	}

	return cmd
}
