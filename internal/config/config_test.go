package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	// Explicit missing file is an error; loading without a path uses defaults.
	require.Error(t, err)

	cfg, err = Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "mediaworker.db", cfg.Database.DSN)
	assert.Equal(t, 2*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Worker.StaleAfter)
	assert.Equal(t, 500*time.Millisecond, cfg.Worker.ProgressFlushInterval)
	assert.Equal(t, "media", cfg.ObjectStore.Bucket)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  driver: postgres
  dsn: "host=localhost user=media dbname=media"
worker:
  poll_interval: 5s
  stale_after: 20m
object_store:
  endpoint: "store.internal:9000"
  bucket: uploads
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 20*time.Minute, cfg.Worker.StaleAfter)
	assert.Equal(t, "store.internal:9000", cfg.ObjectStore.Endpoint)
	assert.Equal(t, "uploads", cfg.ObjectStore.Bucket)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		v := viper.New()
		SetDefaults(v)
		var cfg Config
		require.NoError(t, v.Unmarshal(&cfg))
		return &cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "invalid driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "database.driver",
		},
		{
			name:    "empty dsn",
			mutate:  func(c *Config) { c.Database.DSN = "" },
			wantErr: "database.dsn",
		},
		{
			name:    "empty bucket",
			mutate:  func(c *Config) { c.ObjectStore.Bucket = "" },
			wantErr: "object_store.bucket",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Worker.PollInterval = 0 },
			wantErr: "worker.poll_interval",
		},
		{
			name:    "zero stale threshold",
			mutate:  func(c *Config) { c.Worker.StaleAfter = 0 },
			wantErr: "worker.stale_after",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MEDIAWORKER_DATABASE_DRIVER", "mysql")
	t.Setenv("MEDIAWORKER_OBJECT_STORE_BUCKET", "env-bucket")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "env-bucket", cfg.ObjectStore.Bucket)
}
