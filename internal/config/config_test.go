package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"
	cfg.LogLevel = "loud"
	cfg.Redis.Addr = ""
	cfg.Engine.AgencyID = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "replay"`)
	assert.Contains(t, err.Error(), `unknown log_level "loud"`)
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
	assert.Contains(t, err.Error(), "engine: agency_id must not be empty")
}

func TestValidateS3OnlyRequiredForArchiving(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Endpoint = ""
	cfg.S3.Bucket = ""
	require.NoError(t, cfg.Validate(), "object storage is optional while archiving is off")

	cfg.Archive.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: endpoint must not be empty")
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")

	cfg.Archive.Enabled = false
	cfg.Mode = "archive"
	require.Error(t, cfg.Validate(), "archive mode needs object storage even when the loop is off")
}

func TestValidatePoolBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.PoolMinConns = 20
	cfg.Postgres.PoolMaxConns = 10

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool_min_conns must not exceed pool_max_conns")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "once"

[postgres]
host = "db.internal"
database = "cycles"

[engine]
agency_id = "hr-01"
agency_name = "Harbour Realty"
sweep_interval = "90s"
max_gap_percentage = 7.5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "once", cfg.Mode)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "cycles", cfg.Postgres.Database)
	assert.Equal(t, 5432, cfg.Postgres.Port, "unset fields keep their defaults")
	assert.Equal(t, "hr-01", cfg.Engine.AgencyID)
	assert.Equal(t, 90*time.Second, cfg.Engine.SweepInterval.Duration)
	assert.Equal(t, 7.5, cfg.Engine.MaxGapPercentage)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[postgres]
password = "from-file"
`), 0o644))

	t.Setenv("CYCLED_POSTGRES_PASSWORD", "from-env")
	t.Setenv("CYCLED_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("CYCLED_ENGINE_SWEEP_INTERVAL", "30s")
	t.Setenv("CYCLED_ARCHIVE_ENABLED", "true")
	t.Setenv("CYCLED_METRICS_PORT", "9191")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Postgres.Password)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Engine.SweepInterval.Duration)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, 9191, cfg.Metrics.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestDurationRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("2m30s")))
	assert.Equal(t, 2*time.Minute+30*time.Second, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2m30s", string(out))

	require.Error(t, d.UnmarshalText([]byte("soon")))
}
