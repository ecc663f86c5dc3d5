package commands

import (
	"context"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/d-j-hatton/python-smartem/logger"
)

// KeysCmd lists the metric keys of a project
var KeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the metric keys, particle sources and set groups of a project",
	Args:  cobra.NoArgs,
	RunE:  runKeys,
}

var keysProjectFlag string

func init() {
	KeysCmd.Flags().StringVarP(&keysProjectFlag, "project", "p", "", "Project name")
	KeysCmd.MarkFlagRequired("project")
}

func runKeys(cmd *cobra.Command, args []string) error {
	ctx := logger.WithProject(cmd.Context(), keysProjectFlag)
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	listings := []struct {
		label string
		list  func(context.Context, string) ([]string, error)
	}{
		{"Exposure keys", s.api.GetExposureKeys},
		{"Particle keys", s.api.GetParticleKeys},
		{"Particle set keys", s.api.GetParticleSetKeys},
		{"Particle sources", s.api.GetParticleInfoSources},
		{"Particle set groups", s.api.GetParticleSetGroupNames},
	}

	data := pterm.TableData{{"Kind", "Values"}}
	for _, l := range listings {
		values, err := l.list(ctx, keysProjectFlag)
		if err != nil {
			return err
		}
		data = append(data, []string{l.label, joinOrDash(values)})
	}
	return renderTable(cmd, data)
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
