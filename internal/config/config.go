// Package config provides configuration management for mediaworker using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultPollInterval    = 2 * time.Second
	defaultStaleAfter      = 10 * time.Minute
	defaultProgressFlush   = 500 * time.Millisecond
	defaultJobTimeout      = time.Hour
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute
	defaultProbeTimeout    = 30 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	ObjectStore ObjectStoreConfig `mapstructure:"object_store"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	FFmpeg      FFmpegConfig      `mapstructure:"ffmpeg"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// ObjectStoreConfig holds S3-compatible object storage configuration.
type ObjectStoreConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Bucket        string `mapstructure:"bucket"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url"` // Base URL for public artifact links (empty = derive from endpoint)
}

// WorkerConfig holds worker loop configuration.
type WorkerConfig struct {
	// PollInterval is how long the loop sleeps when no job is claimable.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// StaleAfter is the age past which a processing job is presumed abandoned
	// and swept back to pending.
	StaleAfter time.Duration `mapstructure:"stale_after"`
	// JobTimeout bounds a single pipeline execution.
	JobTimeout time.Duration `mapstructure:"job_timeout"`
	// TempDir is where per-job working directories are created.
	TempDir string `mapstructure:"temp_dir"`
	// WorkerID identifies this process in logs. Empty = generated.
	WorkerID string `mapstructure:"worker_id"`
	// ProgressFlushInterval is the minimum interval between persisted
	// progress updates for a running job.
	ProgressFlushInterval time.Duration `mapstructure:"progress_flush_interval"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath   string        `mapstructure:"binary_path"`   // Path to ffmpeg binary (empty = look up in PATH)
	ProbePath    string        `mapstructure:"probe_path"`    // Path to ffprobe binary (empty = look up in PATH)
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"` // Timeout for a single ffprobe run
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with MEDIAWORKER_ and use underscores
// for nesting. Example: MEDIAWORKER_WORKER_POLL_INTERVAL=5s.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mediaworker")
		v.AddConfigPath("$HOME/.mediaworker")
	}

	v.SetEnvPrefix("MEDIAWORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// FromViper unmarshals and validates a Config from an already-configured
// viper instance. Used by the CLI, where cobra owns the global viper.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file so defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "mediaworker.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Object store defaults
	v.SetDefault("object_store.endpoint", "localhost:9000")
	v.SetDefault("object_store.access_key", "")
	v.SetDefault("object_store.secret_key", "")
	v.SetDefault("object_store.bucket", "media")
	v.SetDefault("object_store.use_ssl", false)
	v.SetDefault("object_store.public_base_url", "")

	// Worker defaults
	v.SetDefault("worker.poll_interval", defaultPollInterval)
	v.SetDefault("worker.stale_after", defaultStaleAfter)
	v.SetDefault("worker.job_timeout", defaultJobTimeout)
	v.SetDefault("worker.temp_dir", "")
	v.SetDefault("worker.worker_id", "")
	v.SetDefault("worker.progress_flush_interval", defaultProgressFlush)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.probe_timeout", defaultProbeTimeout)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.ObjectStore.Endpoint == "" {
		return fmt.Errorf("object_store.endpoint is required")
	}
	if c.ObjectStore.Bucket == "" {
		return fmt.Errorf("object_store.bucket is required")
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker.poll_interval must be positive")
	}
	if c.Worker.StaleAfter <= 0 {
		return fmt.Errorf("worker.stale_after must be positive")
	}
	if c.Worker.ProgressFlushInterval < 0 {
		return fmt.Errorf("worker.progress_flush_interval must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
