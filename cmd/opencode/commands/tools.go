package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolsFormat string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsFormat, "format", "text", "Output format (text|json)")
}

func runTools(cmd *cobra.Command, args []string) error {
	_, _, rt, err := newRuntime(cmd.Context(), true)
	if err != nil {
		return err
	}
	descs := rt.Tools()

	out := cmd.OutOrStdout()
	if toolsFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(descs)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIDE EFFECT\tPARAMETERS\tDESCRIPTION")
	for _, d := range descs {
		params := make([]string, len(d.Parameters))
		for i, p := range d.Parameters {
			params[i] = p.Name
			if p.Required {
				params[i] += "*"
			}
		}
		summary, _, _ := strings.Cut(d.Description, "\n")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.SideEffect, strings.Join(params, ","), summary)
	}
	return tw.Flush()
}
