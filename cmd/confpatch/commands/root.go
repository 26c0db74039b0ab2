package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	dflags directiveFlags
	rflags runtimeFlags

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	buildVersion = version
	var af applyFlags

	rootCmd := &cobra.Command{
		Use:   "confpatch <file>",
		Short: "confpatch - keep a directive inside the right configuration block",
		Long: `confpatch edits a brace-delimited configuration file in place so that one
directive lives inside one named block, and only there.

Occurrences of the directive outside the block are commented out with a
marker. The directive is inserted just before the block's closing brace
when the block lacks it. Running confpatch twice changes nothing.

The default directive is nginx's "include /etc/nginx/sites-enabled/*;"
inside the http block. Use --preset, a recipe (--config) or the directive
flags to patch something else.`,
		Example: `  # Move the sites-enabled include into the http block
  confpatch /etc/nginx/nginx.conf

  # Preview without writing
  confpatch /etc/nginx/nginx.conf --dry-run

  # Patch a custom directive
  confpatch app.conf --block server --pattern '^\s*listen\s+8080\s*;' --directive '    listen 8080;'`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, args[0], af)
		},
	}

	// Persistent flags available to all commands
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "recipe file path")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&jsonOutput, "json", false, "output in JSON format")
	addDirectiveFlags(pf, &dflags)
	addRuntimeFlags(pf, &rflags)

	addApplyFlags(rootCmd.Flags(), &af)

	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newPresetsCommand())

	return rootCmd
}
