package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/openfroyo/confpatch/pkg/engine"
	"github.com/openfroyo/confpatch/pkg/stores"
)

// printOutcome writes a run report, as JSON when --json is set.
func printOutcome(w io.Writer, out *engine.Outcome) error {
	if jsonOutput {
		return writeJSON(w, out)
	}
	_, err := io.WriteString(w, formatOutcome(out))
	return err
}

// formatOutcome renders a human-readable report. Line numbers are 1-based.
func formatOutcome(out *engine.Outcome) string {
	var b strings.Builder
	res := out.Result

	if out.Status == stores.RunStatusUnchanged || res == nil {
		fmt.Fprintf(&b, "%s: unchanged, directive already inside %s block\n", out.Path, out.Block)
		return b.String()
	}

	verb, insert := "commented out", "inserted"
	if out.Status == stores.RunStatusWouldChange {
		verb, insert = "would comment out", "would insert"
	}

	if n := len(res.Neutralized); n > 0 {
		lines := make([]string, n)
		for i, idx := range res.Neutralized {
			lines[i] = strconv.Itoa(idx + 1)
		}
		fmt.Fprintf(&b, "%s: %s %d occurrence(s) outside %s block (line %s)\n",
			out.Path, verb, n, out.Block, strings.Join(lines, ", "))
	}
	if res.Inserted {
		fmt.Fprintf(&b, "%s: %s directive into %s block at line %d\n",
			out.Path, insert, out.Block, res.InsertedLineIndex+1)
	}

	switch {
	case out.Written && out.BackupPath != "":
		fmt.Fprintf(&b, "%s: file updated (backup: %s)\n", out.Path, out.BackupPath)
	case out.Written:
		fmt.Fprintf(&b, "%s: file updated\n", out.Path)
	}

	b.WriteString(out.Diff)
	return b.String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
