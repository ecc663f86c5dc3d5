package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/d-j-hatton/python-smartem/cmd/smartem/commands"
	"github.com/d-j-hatton/python-smartem/config"
	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/logger"
)

var rootCmd = &cobra.Command{
	Use:   "smartem",
	Short: "smartem - cryo-EM acquisition metrics store",
	Long: `smartem - store and query cryo-EM acquisition metrics.

smartem keeps the imaging hierarchy of a session (atlas, tiles, grid squares,
foil holes, exposures, particles) together with the metrics computed for it,
and aggregates those metrics at any level.

Available commands:
  db      - Migrate the database and show row counts
  project - List, inspect, update and delete projects
  keys    - List the metric keys recorded for a project
  stats   - Aggregate metrics for an exposure, foil hole, grid square or atlas
  export  - Write foil hole labels for model training

Examples:
  smartem db migrate
  smartem project ls
  smartem keys --project session1
  smartem stats grid-square GS_1234 --exposure-keys defocus --particle-keys score
  smartem export --project session1 --out labels/ --exposure-keys _rlnctfmaxresolution`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json-log")
		// flags only raise what smartem.toml asks for
		cfg, cfgErr := config.Load()
		if cfgErr == nil {
			verbosity = max(verbosity, cfg.Log.Verbosity)
			jsonOutput = jsonOutput || cfg.Log.JSON
		}
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if cfgErr != nil {
			logger.Warnw("Log settings from configuration ignored", logger.FieldError, cfgErr)
		}
		logger.Debugw("Logger initialized", "level", logger.LevelName(verbosity), "json", jsonOutput)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json-log", false, "Write logs as JSON")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON")

	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ProjectCmd)
	rootCmd.AddCommand(commands.KeysCmd)
	rootCmd.AddCommand(commands.StatsCmd)
	rootCmd.AddCommand(commands.ExportCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if hints := errors.FlattenHints(err); hints != "" {
			fmt.Fprintln(os.Stderr, "hint:", hints)
		}
		os.Exit(1)
	}
}
