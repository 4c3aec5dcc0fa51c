// Package config loads runtime configuration for the webhook delivery
// service from the environment, with an optional .env file for local
// development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds every environment-tunable setting the service needs.
type Config struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string

	WorkerPollInterval    time.Duration
	DeliveryRetentionDays int
	CleanupInterval       time.Duration

	MetricsAddr string
}

// Load reads configuration from the environment, falling back to a ".env"
// file in the working directory when present.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("DATABASE_URL", "postgres://localhost:5432/webhooks?sslmode=disable")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("WEBHOOK_WORKER_POLL_INTERVAL_SECS", 30)
	v.SetDefault("WEBHOOK_DELIVERY_RETENTION_DAYS", 30)
	v.SetDefault("WEBHOOK_CLEANUP_INTERVAL_SECS", 3600)
	v.SetDefault("METRICS_ADDR", ":9464")

	v.SetConfigName(".env")
	v.SetConfigType("env")
	if cwd, err := os.Getwd(); err == nil {
		v.AddConfigPath(cwd)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		DatabaseURL:           v.GetString("DATABASE_URL"),
		HTTPAddr:              v.GetString("HTTP_ADDR"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		WorkerPollInterval:    time.Duration(positiveIntOrDefault(v, "WEBHOOK_WORKER_POLL_INTERVAL_SECS", 30)) * time.Second,
		DeliveryRetentionDays: positiveIntOrDefault(v, "WEBHOOK_DELIVERY_RETENTION_DAYS", 30),
		CleanupInterval:       time.Duration(positiveIntOrDefault(v, "WEBHOOK_CLEANUP_INTERVAL_SECS", 3600)) * time.Second,
		MetricsAddr:           v.GetString("METRICS_ADDR"),
	}, nil
}

// positiveIntOrDefault reads key as a positive integer, falling back to def
// when the value is absent, non-numeric, or not positive. viper's GetInt
// silently coerces a bad value to 0, which would otherwise turn, e.g., a
// typo'd WEBHOOK_WORKER_POLL_INTERVAL_SECS into a time.NewTicker(0) panic
// instead of the documented fallback.
func positiveIntOrDefault(v *viper.Viper, key string, def int) int {
	n, err := strconv.Atoi(v.GetString(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
