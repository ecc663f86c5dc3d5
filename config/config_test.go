package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "smartem.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Aggregate.Workers)
	assert.Equal(t, "smartem", cfg.Metrics.Namespace)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	content := `
[database]
driver = "pgx"
credentials = "/etc/smartem/credentials.yaml"

[aggregate]
workers = 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "/etc/smartem/credentials.yaml", cfg.Database.Credentials)
	assert.Equal(t, 8, cfg.Aggregate.Workers)
	// untouched keys keep defaults
	assert.Equal(t, "smartem", cfg.Metrics.Namespace)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestMergeConfigFiles_Precedence(t *testing.T) {
	dir := t.TempDir()
	system := filepath.Join(dir, "system.toml")
	project := filepath.Join(dir, "project.toml")
	require.NoError(t, os.WriteFile(system, []byte("[database]\npath = \"system.db\"\nmax_open_conns = 2\n"), 0o644))
	require.NoError(t, os.WriteFile(project, []byte("[database]\npath = \"project.db\"\n"), 0o644))

	v := viper.New()
	SetDefaults(v)
	require.NoError(t, mergeConfigFiles(v, []string{system, filepath.Join(dir, "absent.toml"), project}))

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, "project.db", cfg.Database.Path)
	assert.Equal(t, 2, cfg.Database.MaxOpenConns)
}

func TestEnvOverridesFiles(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(project, []byte("[aggregate]\nworkers = 2\n"), 0o644))
	t.Setenv("SMARTEM_AGGREGATE_WORKERS", "16")
	t.Setenv("SMARTEM_CREDENTIALS", "/run/secrets/smartem.yaml")

	v := viper.New()
	v.SetEnvPrefix("SMARTEM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	BindSensitiveEnvVars(v)
	SetDefaults(v)
	require.NoError(t, mergeConfigFiles(v, []string{project}))

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Aggregate.Workers)
	assert.Equal(t, "/run/secrets/smartem.yaml", cfg.Database.Credentials)
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Empty(t, findProjectConfig(nested))

	path := filepath.Join(root, "a", ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	assert.Equal(t, path, findProjectConfig(nested))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database:  DatabaseConfig{Driver: DriverSQLite, Path: "smartem.db"},
			Aggregate: AggregateConfig{Workers: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid sqlite", mutate: func(*Config) {}},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "database.driver",
		},
		{
			name:    "empty sqlite path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "pgx without credentials",
			mutate:  func(c *Config) { c.Database.Driver = DriverPostgres },
			wantErr: "database.credentials",
		},
		{
			name: "pgx with credentials",
			mutate: func(c *Config) {
				c.Database.Driver = DriverPostgres
				c.Database.Credentials = "creds.yaml"
			},
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Aggregate.Workers = 0 },
			wantErr: "aggregate.workers",
		},
		{
			name:    "negative max open conns",
			mutate:  func(c *Config) { c.Database.MaxOpenConns = -1 },
			wantErr: "database.max_open_conns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
