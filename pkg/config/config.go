// Package config provides environment-based configuration for the payflow
// services.
package config

import (
	"os"
	"strings"
)

// ServiceConfig carries the settings shared by every payflow binary.
type ServiceConfig struct {
	// DatabaseURL selects the PostgreSQL record store when set; otherwise
	// the file store rooted at StoreRoot is used.
	DatabaseURL string

	// StoreRoot is the file store root directory.
	StoreRoot string

	// RedisURL enables the Redis activity recorder when set.
	RedisURL string

	// KafkaBrokers enables the Kafka notification channel when non-empty;
	// otherwise the in-process channel is used.
	KafkaBrokers []string

	// Port is the HTTP listen port for the API service.
	Port string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// SweepSchedule is the cron expression for the expiry sweeper.
	SweepSchedule string

	// Owners lists the nyms the sweeper watches for expired instruments.
	Owners []string
}

// FromEnv builds a ServiceConfig from the process environment, applying
// defaults suitable for local development.
func FromEnv() ServiceConfig {
	cfg := ServiceConfig{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StoreRoot:     os.Getenv("STORE_ROOT"),
		RedisURL:      os.Getenv("REDIS_URL"),
		Port:          os.Getenv("PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		SweepSchedule: os.Getenv("SWEEP_SCHEDULE"),
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	owners := os.Getenv("OWNERS")
	if owners != "" {
		cfg.Owners = strings.Split(owners, ",")
	}

	if cfg.StoreRoot == "" {
		cfg.StoreRoot = "./data"
	}

	if cfg.Port == "" {
		cfg.Port = "9090"
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@every 1m"
	}

	return cfg
}
