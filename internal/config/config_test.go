package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, []string{"purchase", "logout"}, cfg.Analysis.TerminalActions)
	assert.Equal(t, 50, cfg.Analysis.TransitionLimit)
	assert.Equal(t, 20, cfg.Analysis.MaxExamples)
	assert.Equal(t, 2, cfg.Analysis.WindowBefore)
	assert.Equal(t, 2, cfg.Analysis.WindowAfter)
	assert.Equal(t, 20, cfg.History.DefaultLimit)
	assert.Len(t, cfg.Ingest.Weights, len(cfg.Ingest.Actions))
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "partial override keeps defaults",
			content: "log_level: debug\nanalysis:\n  max_examples: 5\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, 5, cfg.Analysis.MaxExamples)
				assert.Equal(t, 2, cfg.Analysis.WindowBefore)
				assert.Equal(t, DriverSQLite, cfg.Store.Driver)
			},
		},
		{
			name:    "explicit zero window",
			content: "analysis:\n  window_before: 0\n  window_after: 0\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 0, cfg.Analysis.WindowBefore)
				assert.Equal(t, 0, cfg.Analysis.WindowAfter)
			},
		},
		{
			name:    "terminal set replaced",
			content: "analysis:\n  terminal_actions: [checkout]\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"checkout"}, cfg.Analysis.TerminalActions)
			},
		},
		{
			name:    "postgres store",
			content: "store:\n  driver: postgres\n  postgres_dsn: postgres://u@db/analytics\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DriverPostgres, cfg.Store.Driver)
				assert.Equal(t, "postgres://u@db/analytics", cfg.Store.PostgresDSN)
			},
		},
		{
			name:    "malformed yaml",
			content: "analysis: [unterminated",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			cfg, err := LoadConfig(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolvePaths_UnderHome(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResolvePaths("/home/x")

	assert.Equal(t, filepath.Join("/home/x", "fragility.db"), cfg.Store.SQLitePath)
	assert.Equal(t, filepath.Join("/home/x", "logs"), cfg.LogDir)
}

func TestResolvePaths_KeepsAbsoluteAndMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.SQLitePath = ":memory:"
	cfg.LogDir = "/var/log/fragility"
	cfg.ResolvePaths("/home/x")

	assert.Equal(t, ":memory:", cfg.Store.SQLitePath)
	assert.Equal(t, "/var/log/fragility", cfg.LogDir)
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "database url wins over postgres parts",
			env: map[string]string{
				"FRAGILITY_STORE": "POSTGRES",
				"DATABASE_URL":    "postgres://a@b/c",
				"POSTGRES_HOST":   "ignored",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DriverPostgres, cfg.Store.Driver)
				assert.Equal(t, "postgres://a@b/c", cfg.Store.PostgresDSN)
			},
		},
		{
			name: "postgres parts composed",
			env: map[string]string{
				"POSTGRES_HOST": "db",
				"POSTGRES_PORT": "6543",
				"POSTGRES_USER": "analyst",
				"POSTGRES_DB":   "analytics",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "host=db port=6543 user=analyst dbname=analytics sslmode=disable", cfg.Store.PostgresDSN)
			},
		},
		{
			name: "postgres values with spaces and quotes are quoted",
			env: map[string]string{
				"POSTGRES_HOST":     "db",
				"POSTGRES_USER":     "analyst",
				"POSTGRES_PASSWORD": `it's a \secret`,
				"POSTGRES_DB":       "analytics",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, `host=db port=5432 user=analyst password='it\'s a \\secret' dbname=analytics sslmode=disable`, cfg.Store.PostgresDSN)
			},
		},
		{
			name: "log level and sqlite path",
			env:  map[string]string{"LOG_LEVEL": "WARN", "FRAGILITY_DB_PATH": "/tmp/x.db", "FRAGILITY_ADDR": ":9090"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "warn", cfg.LogLevel)
				assert.Equal(t, "/tmp/x.db", cfg.Store.SQLitePath)
				assert.Equal(t, ":9090", cfg.Server.Addr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			require.NoError(t, cfg.ApplyEnv(func(k string) string { return tt.env[k] }))
			tt.check(t, cfg)
		})
	}
}

func TestApplyEnv_BadPort(t *testing.T) {
	cfg := DefaultConfig()
	env := map[string]string{"POSTGRES_HOST": "db", "POSTGRES_PORT": "five"}
	err := cfg.ApplyEnv(func(k string) string { return env[k] })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_PORT")
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	level := "DEBUG"
	driver := "memory"

	cfg.MergeWithFlags(&level, &driver, nil)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "fragility.db", cfg.Store.SQLitePath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		errMsg string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad driver", func(c *Config) { c.Store.Driver = "mongo" }, "store.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }, "postgres_dsn"},
		{"empty sqlite path", func(c *Config) { c.Store.SQLitePath = "" }, "sqlite_path"},
		{"no terminal actions", func(c *Config) { c.Analysis.TerminalActions = nil }, "terminal_actions"},
		{"negative window", func(c *Config) { c.Analysis.WindowBefore = -1 }, "windows"},
		{"weights mismatch", func(c *Config) { c.Ingest.Weights = []int{1} }, "ingest.weights"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("memory driver needs nothing", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Store.Driver = DriverMemory
		cfg.Store.SQLitePath = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestGetFragilityHome_Env(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "home")
	t.Setenv("FRAGILITY_HOME", dir)

	home, err := GetFragilityHome()
	require.NoError(t, err)
	assert.Equal(t, dir, home)
	assert.DirExists(t, dir)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FRAGILITY_DOTENV_PROBE=from-file\n"), 0644))
	t.Setenv("FRAGILITY_DOTENV_PROBE", "")
	os.Unsetenv("FRAGILITY_DOTENV_PROBE")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("FRAGILITY_DOTENV_PROBE"))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("log_level: debug\n"), 0644))
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load(home, "")
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, filepath.Join(home, "fragility.db"), cfg.Store.SQLitePath)
}

func TestLoad_RelativeEnvPathResolvesUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FRAGILITY_DB_PATH", filepath.Join("data", "events.db"))

	cfg, err := Load(home, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data", "events.db"), cfg.Store.SQLitePath)
}
