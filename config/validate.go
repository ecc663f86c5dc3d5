package config

import "github.com/d-j-hatton/python-smartem/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path cannot be empty for the sqlite3 driver")
		}
	case DriverPostgres:
		if c.Database.Credentials == "" {
			return errors.WithHint(
				errors.New("database.credentials is required for the pgx driver"),
				"set database.credentials or SMARTEM_CREDENTIALS to a YAML credentials file",
			)
		}
	default:
		return errors.Newf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}

	if c.Database.MaxOpenConns < 0 {
		return errors.Newf("database.max_open_conns must be >= 0, got %d", c.Database.MaxOpenConns)
	}

	// 0 workers is not "no work", aggregation always needs one goroutine
	if c.Aggregate.Workers < 1 {
		return errors.Newf("aggregate.workers must be >= 1, got %d", c.Aggregate.Workers)
	}

	if c.Log.Verbosity < 0 {
		return errors.Newf("log.verbosity must be >= 0, got %d", c.Log.Verbosity)
	}

	return nil
}
