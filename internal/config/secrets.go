package config

const redacted = "***"

// RedactedConfig copies cfg with credential fields masked so the active
// configuration can be logged at startup without leaking secrets.
func RedactedConfig(cfg *Config) Config {
	out := *cfg
	mask(&out.Postgres.DSN)
	mask(&out.Postgres.Password)
	mask(&out.Redis.Password)
	mask(&out.S3.AccessKey)
	mask(&out.S3.SecretKey)
	return out
}

// mask replaces a non-empty string with the redaction placeholder. Empty
// fields stay empty so the log still shows which credentials are unset.
func mask(s *string) {
	if *s != "" {
		*s = redacted
	}
}
