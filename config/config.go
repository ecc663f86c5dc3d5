// Package config loads smartem configuration from TOML files and SMARTEM_* environment variables.
package config

// Config is the full smartem configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`         // sqlite3 or pgx
	Path         string `mapstructure:"path"`           // sqlite file, ignored for pgx
	Credentials  string `mapstructure:"credentials"`    // YAML credentials file for pgx
	MaxOpenConns int    `mapstructure:"max_open_conns"` // 0 = driver default
}

// LogConfig controls logger.Initialize.
type LogConfig struct {
	JSON      bool `mapstructure:"json"`
	Verbosity int  `mapstructure:"verbosity"`
}

// AggregateConfig bounds caller-side parallelism when aggregating a whole atlas.
type AggregateConfig struct {
	Workers int `mapstructure:"workers"`
}

// MetricsConfig names the prometheus namespace for query instrumentation.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// ConfigFileName is the file searched for in system, user and project locations.
const ConfigFileName = "smartem.toml"

// DefaultDirPermissions is used when creating ~/.smartem.
const DefaultDirPermissions = 0o755
