package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingDatabaseURL is returned when no relational store is configured.
// Both binaries treat it as fatal before touching any data.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

type Config struct {
	Addr            string
	DatabaseURL     string
	AuthTokenSecret string
	CORSOrigin      string
	MigrateOnStart  bool
	ShutdownTimeout time.Duration
	// Logging
	LogLevel  string
	LogFormat string
	// Redis holds revoked session tokens; empty keeps them in process memory.
	RedisURL string
	// Vote engine
	VoteMaxAttempts int
	// Seeding
	SeedBatchSize int
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3UseSSL      bool
}

// New returns a viper instance with defaults registered and environment
// lookup enabled. Callers may bind command-line flags onto it before calling
// FromViper.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_addr", ":8787")
	v.SetDefault("database_url", "")
	v.SetDefault("auth_token_secret", "slangdict-dev-secret")
	v.SetDefault("cors_origin", "*")
	v.SetDefault("migrate_on_start", true)
	v.SetDefault("shutdown_timeout_seconds", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("redis_url", "")
	v.SetDefault("vote_max_attempts", 3)
	v.SetDefault("seed_batch_size", 500)
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_use_ssl", true)
	return v
}

func Load() (Config, error) {
	return FromViper(New())
}

func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Addr:            v.GetString("api_addr"),
		DatabaseURL:     strings.TrimSpace(v.GetString("database_url")),
		AuthTokenSecret: v.GetString("auth_token_secret"),
		CORSOrigin:      v.GetString("cors_origin"),
		MigrateOnStart:  v.GetBool("migrate_on_start"),
		ShutdownTimeout: time.Duration(positive(v.GetInt("shutdown_timeout_seconds"), 10)) * time.Second,
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		RedisURL:        strings.TrimSpace(v.GetString("redis_url")),
		VoteMaxAttempts: positive(v.GetInt("vote_max_attempts"), 3),
		SeedBatchSize:   positive(v.GetInt("seed_batch_size"), 500),
		S3Endpoint:      v.GetString("s3_endpoint"),
		S3AccessKey:     v.GetString("s3_access_key"),
		S3SecretKey:     v.GetString("s3_secret_key"),
		S3UseSSL:        v.GetBool("s3_use_ssl"),
	}
	if cfg.DatabaseURL == "" {
		return cfg, ErrMissingDatabaseURL
	}
	return cfg, nil
}

func positive(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
