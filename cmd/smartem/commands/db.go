package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/d-j-hatton/python-smartem/db"
	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/schema"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the smartem database",
	Long: `db — Manage the smartem database

Apply migrations and inspect how many rows every table holds.

Examples:
  smartem db migrate    # Apply pending migrations
  smartem db stats      # Show schema version and row counts`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show schema version and row counts",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	// openSession migrates on connect
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	version, err := db.SchemaVersion(cmd.Context(), s.db)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Database is at schema version %s (%s)\n", version, s.dialect)
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	version, err := db.SchemaVersion(cmd.Context(), s.db)
	if err != nil {
		return err
	}

	data := pterm.TableData{{"Table", "Rows"}}
	for _, table := range schema.DefaultTables {
		var n int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", db.Quote(table.Name()))
		if err := s.db.QueryRowContext(cmd.Context(), query).Scan(&n); err != nil {
			return errors.Wrapf(err, "failed to count %s", table.Name())
		}
		data = append(data, []string{table.Name(), fmt.Sprintf("%d", n)})
	}

	pterm.DefaultHeader.WithFullWidth().Printf("smartem database")
	pterm.Info.Printf("Driver: %s\n", s.dialect)
	if s.dialect == db.SQLite {
		pterm.Info.Printf("Path: %s\n", s.cfg.Database.Path)
	}
	pterm.Info.Printf("Schema version: %s\n", version)
	pterm.Println()
	return renderTable(cmd, data)
}
