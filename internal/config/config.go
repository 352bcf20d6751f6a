package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	DatabaseURL         string
	RedisURL            string
	NatsURL             string // empty disables the NATS publisher
	AdminKey            string // guards /sweeps, /alerts and /health/reset
	FrontendURLEndsWith string
	DevPassword         string
	LogLevel            string

	SweepInterval     time.Duration
	AlertInterval     time.Duration
	SweepBatchSize    int
	UpdateMaxAttempts int
	UpdateRetryBase   time.Duration
	ProfileCacheTTL   time.Duration
	WorkerLockTTL     time.Duration
	WorkersEnabled    bool
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SWEEP_INTERVAL", "1m")
	viper.SetDefault("ALERT_INTERVAL", "1m")
	viper.SetDefault("SWEEP_BATCH_SIZE", 200)
	viper.SetDefault("UPDATE_MAX_ATTEMPTS", 3)
	viper.SetDefault("UPDATE_RETRY_BASE", "20ms")
	viper.SetDefault("PROFILE_CACHE_TTL", "5m")
	viper.SetDefault("WORKER_LOCK_TTL", "30s")
	viper.SetDefault("WORKERS_ENABLED", true)

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		NatsURL:             viper.GetString("NATS_URL"),
		AdminKey:            viper.GetString("ADMIN_KEY"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		SweepInterval:       positive(viper.GetDuration("SWEEP_INTERVAL"), time.Minute),
		AlertInterval:       positive(viper.GetDuration("ALERT_INTERVAL"), time.Minute),
		SweepBatchSize:      viper.GetInt("SWEEP_BATCH_SIZE"),
		UpdateMaxAttempts:   viper.GetInt("UPDATE_MAX_ATTEMPTS"),
		UpdateRetryBase:     viper.GetDuration("UPDATE_RETRY_BASE"),
		ProfileCacheTTL:     viper.GetDuration("PROFILE_CACHE_TTL"),
		WorkerLockTTL:       viper.GetDuration("WORKER_LOCK_TTL"),
		WorkersEnabled:      viper.GetBool("WORKERS_ENABLED"),
	}, nil
}

func positive(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
