package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Goldsky.URL = "https://example.com/subgraph"
	return cfg
}

func TestDefaults_ValidOnceSourceURLSet(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_GoldskyURLRequiredForIngestingModes(t *testing.T) {
	for _, mode := range []string{"ingest", "full"} {
		cfg := Defaults()
		cfg.Mode = mode
		err := cfg.Validate()
		require.Error(t, err, "mode %s", mode)
		assert.Contains(t, err.Error(), "goldsky: url is required")
	}

	for _, mode := range []string{"aggregate", "settle", "monitor"} {
		cfg := Defaults()
		cfg.Mode = mode
		assert.NoError(t, cfg.Validate(), "mode %s", mode)
	}
}

func TestValidate_RejectsUnknownMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "turbo"`)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.Redis.Addr = ""
	cfg.Pipeline.FetchLimit = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "unknown mode")
	assert.Contains(t, msg, "redis: addr")
	assert.Contains(t, msg, "fetch_limit")
	assert.GreaterOrEqual(t, strings.Count(msg, "\n  - "), 3)
}

func TestValidate_StallMustExceedIngestInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.StallAfter = duration{time.Minute}
	cfg.Pipeline.IngestInterval = duration{2 * time.Minute}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stall_after must exceed ingest_interval")
}

func TestValidate_SnapshotCronFieldCount(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.SnapshotCron = "0 4 * *"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot_cron")

	cfg.Pipeline.SnapshotCron = ""
	assert.NoError(t, cfg.Validate(), "empty cron disables the exporter and is allowed")
}

func TestValidate_DSNBypassesHostChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.DSN = "postgres://user:pass@db:5432/pnlcore"
	cfg.Postgres.Host = ""
	cfg.Postgres.Port = 0
	cfg.Postgres.Database = ""
	assert.NoError(t, cfg.Validate())
}

func TestDurationRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))
}
