package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CYCLED_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known CYCLED_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "CYCLED_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CYCLED_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CYCLED_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CYCLED_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CYCLED_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CYCLED_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CYCLED_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CYCLED_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CYCLED_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CYCLED_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CYCLED_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CYCLED_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CYCLED_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CYCLED_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CYCLED_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CYCLED_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "CYCLED_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CYCLED_S3_REGION")
	setStr(&cfg.S3.Bucket, "CYCLED_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CYCLED_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CYCLED_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CYCLED_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CYCLED_S3_FORCE_PATH_STYLE")

	// ── Engine ──
	setStr(&cfg.Engine.AgencyID, "CYCLED_ENGINE_AGENCY_ID")
	setStr(&cfg.Engine.AgencyName, "CYCLED_ENGINE_AGENCY_NAME")
	setDuration(&cfg.Engine.SweepInterval, "CYCLED_ENGINE_SWEEP_INTERVAL")
	setFloat64(&cfg.Engine.MaxGapPercentage, "CYCLED_ENGINE_MAX_GAP_PERCENTAGE")
	setDuration(&cfg.Engine.LockTTL, "CYCLED_ENGINE_LOCK_TTL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "CYCLED_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "CYCLED_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Prefix, "CYCLED_ARCHIVE_PREFIX")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "CYCLED_METRICS_ENABLED")
	setInt(&cfg.Metrics.Port, "CYCLED_METRICS_PORT")

	// ── Top-level ──
	setStr(&cfg.Mode, "CYCLED_MODE")
	setStr(&cfg.LogLevel, "CYCLED_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
