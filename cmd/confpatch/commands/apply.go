package commands

import (
	"fmt"
	"path/filepath"

	"github.com/openfroyo/confpatch/pkg/engine"
	"github.com/spf13/cobra"
)

func newApplyCommand() *cobra.Command {
	var af applyFlags

	cmd := &cobra.Command{
		Use:   "apply <file>",
		Short: "Patch a configuration file in place",
		Long: `Patch a configuration file in place.

This command:
  - Reads the file and locates the target block
  - Comments out the directive wherever it appears outside the block
  - Inserts the directive before the block's closing brace if missing
  - Replaces the file atomically, keeping its mode and ownership
  - Records the run in the journal when --journal is set

Running "confpatch <file>" is the same as "confpatch apply <file>".`,
		Example: `  # Apply the default nginx sites-enabled directive
  confpatch apply /etc/nginx/nginx.conf

  # Keep a backup and show what changed
  confpatch apply /etc/nginx/nginx.conf --backup --diff

  # Apply a recipe
  confpatch apply /etc/nginx/nginx.conf -c stream.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, args[0], af)
		},
	}

	addApplyFlags(cmd.Flags(), &af)

	return cmd
}

func runApply(cmd *cobra.Command, file string, af applyFlags) error {
	d, r, err := resolveDirective()
	if err != nil {
		return err
	}
	path, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close(cmd.Context())

	out, err := rt.engine.Apply(cmd.Context(), path, d, engine.Options{
		DryRun: af.dryRun,
		Backup: af.backup || r.Backup,
		Diff:   af.diff,
		Recipe: r.Label(),
	})
	if err != nil {
		return err
	}
	return printOutcome(cmd.OutOrStdout(), out)
}
