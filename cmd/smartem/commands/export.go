package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/d-j-hatton/python-smartem/export"
	"github.com/d-j-hatton/python-smartem/logger"
)

// ExportCmd writes foil hole labels
var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write foil hole labels for model training",
	Long: `export — Write labels.csv with one row per foil hole

Every row carries grid square and foil hole geometry and the per foil hole
average of each requested key. Foil holes missing any key are left out.

Examples:
  smartem export --project session1 --out labels/ \
    --exposure-keys _rlnaccummotiontotal,_rlnctfmaxresolution \
    --particle-keys _rlnmaxvalueprobdistribution \
    --particle-set-keys _rlnestimatedresolution`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	exportProjectsFlag []string
	exportOutFlag      string
)

func init() {
	ExportCmd.Flags().StringSliceVarP(&exportProjectsFlag, "project", "p", nil, "Projects to export (repeatable)")
	ExportCmd.Flags().StringVarP(&exportOutFlag, "out", "o", ".", "Output directory")
	ExportCmd.Flags().StringSliceVar(&exposureKeysFlag, "exposure-keys", nil, "Exposure level metric keys")
	ExportCmd.Flags().StringSliceVar(&particleKeysFlag, "particle-keys", nil, "Particle level metric keys")
	ExportCmd.Flags().StringSliceVar(&particleSetKeysFlag, "particle-set-keys", nil, "Particle set level metric keys")
	ExportCmd.MarkFlagRequired("project")
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := export.FoilHoles(cmd.Context(), s.api, exportOutFlag, export.Options{
		Projects:        exportProjectsFlag,
		ExposureKeys:    exposureKeysFlag,
		ParticleKeys:    particleKeysFlag,
		ParticleSetKeys: particleSetKeysFlag,
		Logger:          logger.ComponentLogger("export"),
	})
	if err != nil {
		return err
	}
	pterm.Success.Printf("Wrote %d foil holes to %s/%s\n", n, exportOutFlag, export.LabelsFile)
	return nil
}
