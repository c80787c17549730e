package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 3, cfg.Queue.MaxConcurrentJobs)
	assert.Equal(t, 85, cfg.Render.JPEGQuality)
	assert.Equal(t, 5, cfg.Render.MaxThumbnails)
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9999
queue:
  max_concurrent_jobs: 5
  upload_dir: /data/uploads
database:
  driver: postgres
  postgres:
    dsn: postgres://localhost/tablefold
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Queue.MaxConcurrentJobs)
	assert.Equal(t, "/data/uploads", cfg.Queue.UploadDir)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/tablefold", cfg.Database.Postgres.DSN)
	// Untouched sections keep their defaults.
	assert.Equal(t, "memory", cfg.Cache.Driver)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TABLEFOLD_PORT", "7070")
	t.Setenv("TABLEFOLD_MAX_CONCURRENT_JOBS", "1")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 1, cfg.Queue.MaxConcurrentJobs)
	assert.Equal(t, "sk-or-env", cfg.Extraction.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad db driver", func(c *Config) { c.Database.Driver = "mongodb" }},
		{"bad cache driver", func(c *Config) { c.Cache.Driver = "disk" }},
		{"zero concurrency", func(c *Config) { c.Queue.MaxConcurrentJobs = 0 }},
		{"bad jpeg quality", func(c *Config) { c.Render.JPEGQuality = 101 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}
