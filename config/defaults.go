package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "smartem.db")
	v.SetDefault("database.credentials", "")
	v.SetDefault("database.max_open_conns", 0)

	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)

	// Grid squares aggregated concurrently by GetAtlasStatsFlat
	v.SetDefault("aggregate.workers", 4)

	v.SetDefault("metrics.namespace", "smartem")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Same variable the importers and the viewer read
	v.BindEnv("database.credentials", "SMARTEM_CREDENTIALS")
}
