package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PNLCORE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PNLCORE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PNLCORE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PNLCORE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PNLCORE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PNLCORE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PNLCORE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PNLCORE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PNLCORE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PNLCORE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PNLCORE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PNLCORE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PNLCORE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PNLCORE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PNLCORE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PNLCORE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PNLCORE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PNLCORE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PNLCORE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PNLCORE_S3_REGION")
	setStr(&cfg.S3.Bucket, "PNLCORE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PNLCORE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PNLCORE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PNLCORE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PNLCORE_S3_FORCE_PATH_STYLE")

	// ── Goldsky ──
	setStr(&cfg.Goldsky.URL, "PNLCORE_GOLDSKY_URL")
	setStr(&cfg.Goldsky.APIKey, "PNLCORE_GOLDSKY_API_KEY")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.IngestInterval, "PNLCORE_PIPELINE_INGEST_INTERVAL")
	setDuration(&cfg.Pipeline.AggregateInterval, "PNLCORE_PIPELINE_AGGREGATE_INTERVAL")
	setDuration(&cfg.Pipeline.SettleInterval, "PNLCORE_PIPELINE_SETTLE_INTERVAL")
	setDuration(&cfg.Pipeline.MonitorInterval, "PNLCORE_PIPELINE_MONITOR_INTERVAL")
	setDuration(&cfg.Pipeline.OverlapWindow, "PNLCORE_PIPELINE_OVERLAP_WINDOW")
	setDuration(&cfg.Pipeline.StallAfter, "PNLCORE_PIPELINE_STALL_AFTER")
	setInt(&cfg.Pipeline.FetchLimit, "PNLCORE_PIPELINE_FETCH_LIMIT")
	setDuration(&cfg.Pipeline.LockTTL, "PNLCORE_PIPELINE_LOCK_TTL")
	setStr(&cfg.Pipeline.SnapshotCron, "PNLCORE_PIPELINE_SNAPSHOT_CRON")

	// ── Top-level ──
	setStr(&cfg.Mode, "PNLCORE_MODE")
	setStr(&cfg.LogLevel, "PNLCORE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
