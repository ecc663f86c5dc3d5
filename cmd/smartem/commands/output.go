package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// shouldOutputJSON reports whether the global --json flag was set.
func shouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	jsonFlag, _ := cmd.Root().PersistentFlags().GetBool("json")
	return jsonFlag
}

// renderTable prints data as a table, or with --json as one object per row
// keyed by the header.
func renderTable(cmd *cobra.Command, data pterm.TableData) error {
	if !shouldOutputJSON(cmd) {
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}
	return outputJSON(cmd, tableObjects(data))
}

func tableObjects(data pterm.TableData) []map[string]string {
	if len(data) == 0 {
		return []map[string]string{}
	}
	header := data[0]
	out := make([]map[string]string, 0, len(data)-1)
	for _, row := range data[1:] {
		obj := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				obj[col] = row[i]
			}
		}
		out = append(out, obj)
	}
	return out
}

// outputJSON writes v indented to the command's output.
func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
