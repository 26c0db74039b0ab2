package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/openfroyo/confpatch/pkg/blockpatch"
	"github.com/spf13/cobra"
)

type presetView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Block       string `json:"block"`
	Pattern     string `json:"pattern"`
	Directive   string `json:"directive"`
	Default     bool   `json:"default"`
}

func newPresetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List built-in directive presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := blockpatch.Presets()
			views := make([]presetView, 0, len(presets))
			for _, p := range presets {
				views = append(views, presetView{
					Name:        p.Name,
					Description: p.Description,
					Block:       p.Block,
					Pattern:     p.Pattern,
					Directive:   p.Literal,
					Default:     p.Name == blockpatch.DefaultPresetName,
				})
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, views)
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "NAME\tBLOCK\tDIRECTIVE\tDESCRIPTION")
			for _, v := range views {
				name := v.Name
				if v.Default {
					name += " (default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%q\t%s\n", name, v.Block, v.Directive, v.Description)
			}
			return w.Flush()
		},
	}

	return cmd
}
