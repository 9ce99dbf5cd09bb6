// Package config defines the top-level configuration for the PnL pipeline
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PNLCORE_* environment
// variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Goldsky  GoldskyConfig  `toml:"goldsky"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for snapshot
// exports.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// GoldskyConfig holds the subgraph endpoint serving the raw event streams.
type GoldskyConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// PipelineConfig holds ingestion and settlement cadence parameters.
type PipelineConfig struct {
	// IngestInterval is the cadence of per-source ledger build passes and
	// the auxiliary market/resolution syncs.
	IngestInterval duration `toml:"ingest_interval"`

	// AggregateInterval is the cadence of full position recomputes.
	AggregateInterval duration `toml:"aggregate_interval"`

	// SettleInterval is the cadence of settlement runs.
	SettleInterval duration `toml:"settle_interval"`

	// MonitorInterval is the cadence of health checks in monitor mode.
	MonitorInterval duration `toml:"monitor_interval"`

	// OverlapWindow is re-fetched behind each watermark to tolerate late
	// or reordered events; idempotent ledger writes absorb the overlap.
	OverlapWindow duration `toml:"overlap_window"`

	// StallAfter is how long a watermark may sit still before the monitor
	// raises a stall alert.
	StallAfter duration `toml:"stall_after"`

	// FetchLimit caps the rows requested per subgraph query.
	FetchLimit int `toml:"fetch_limit"`

	// LockTTL bounds how long an ingestion lock outlives a crashed run.
	LockTTL duration `toml:"lock_ttl"`

	// SnapshotCron is the 5-field cron schedule of the CSV export.
	SnapshotCron string `toml:"snapshot_cron"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. These
// match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "pnlcore",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "pnlcore-snapshots",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Goldsky: GoldskyConfig{
			URL:    "",
			APIKey: "",
		},
		Pipeline: PipelineConfig{
			IngestInterval:    duration{2 * time.Minute},
			AggregateInterval: duration{10 * time.Minute},
			SettleInterval:    duration{15 * time.Minute},
			MonitorInterval:   duration{5 * time.Minute},
			OverlapWindow:     duration{10 * time.Minute},
			StallAfter:        duration{30 * time.Minute},
			FetchLimit:        1000,
			LockTTL:           duration{10 * time.Minute},
			SnapshotCron:      "0 4 * * *",
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"ingest":    true,
	"aggregate": true,
	"settle":    true,
	"monitor":   true,
	"full":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: ingest, aggregate, settle, monitor, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Goldsky — required for any mode that ingests.
	mode := strings.ToLower(c.Mode)
	if mode == "ingest" || mode == "full" {
		if c.Goldsky.URL == "" {
			errs = append(errs, "goldsky: url is required for mode "+mode)
		}
	}

	// Pipeline cadence
	if c.Pipeline.IngestInterval.Duration <= 0 {
		errs = append(errs, "pipeline: ingest_interval must be > 0")
	}
	if c.Pipeline.AggregateInterval.Duration <= 0 {
		errs = append(errs, "pipeline: aggregate_interval must be > 0")
	}
	if c.Pipeline.SettleInterval.Duration <= 0 {
		errs = append(errs, "pipeline: settle_interval must be > 0")
	}
	if c.Pipeline.MonitorInterval.Duration <= 0 {
		errs = append(errs, "pipeline: monitor_interval must be > 0")
	}
	if c.Pipeline.OverlapWindow.Duration < 0 {
		errs = append(errs, "pipeline: overlap_window must be >= 0")
	}
	if c.Pipeline.StallAfter.Duration <= 0 {
		errs = append(errs, "pipeline: stall_after must be > 0")
	}
	if c.Pipeline.StallAfter.Duration <= c.Pipeline.IngestInterval.Duration {
		errs = append(errs, "pipeline: stall_after must exceed ingest_interval")
	}
	if c.Pipeline.FetchLimit < 1 {
		errs = append(errs, "pipeline: fetch_limit must be >= 1")
	}
	if c.Pipeline.LockTTL.Duration <= 0 {
		errs = append(errs, "pipeline: lock_ttl must be > 0")
	}
	if c.Pipeline.SnapshotCron != "" && len(strings.Fields(c.Pipeline.SnapshotCron)) != 5 {
		errs = append(errs, fmt.Sprintf("pipeline: snapshot_cron must have 5 fields, got %q", c.Pipeline.SnapshotCron))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
