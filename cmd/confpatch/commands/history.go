package commands

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/openfroyo/confpatch/pkg/stores"
	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit  int
		status string
	)

	cmd := &cobra.Command{
		Use:   "history [file]",
		Short: "List recorded patch runs",
		Long: `List runs recorded in the journal, newest first.

Requires --journal (or CONFPATCH_JOURNAL). Pass a file to show only its runs.`,
		Example: `  # Last runs against nginx.conf
  confpatch history /etc/nginx/nginx.conf --journal /var/lib/confpatch/journal.db

  # Failed runs as JSON
  confpatch history --status failed --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rflags.journal == "" {
				return fmt.Errorf("no journal configured: pass --journal or set CONFPATCH_JOURNAL")
			}

			filter := stores.RunFilter{
				Status: stores.RunStatus(status),
				Limit:  limit,
			}
			if len(args) == 1 {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("failed to resolve path: %w", err)
				}
				filter.Path = path
			}

			store, err := openJournal(cmd.Context(), rflags.journal)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSTATUS\tPATH\tBLOCK\tNEUTRALIZED\tINSERTED\tDURATION")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\t%s\n",
					run.StartedAt.Local().Format(time.RFC3339),
					run.Status,
					run.Path,
					run.Block,
					run.Neutralized,
					run.Inserted,
					run.Duration.Round(time.Microsecond),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", stores.DefaultListLimit, "maximum number of runs to show")
	cmd.Flags().StringVar(&status, "status", "", "only show runs with this status (changed, unchanged, would_change, failed)")

	return cmd
}
