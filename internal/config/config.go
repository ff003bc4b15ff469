// Package config loads runtime settings from the environment and optional .env files.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultAPIToken = "dev-token"

// Config holds every runtime setting of the server and CLI
type Config struct {
	DatabaseURL string

	GRPCAddr string
	HTTPAddr string
	APIToken string
	LogLevel string

	CacheTTL     time.Duration
	CacheCleanup time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	MigrateOnStart bool
	UseSnapshots   bool
}

// Load reads .env (then ../.env) when present and builds the Config from the environment
func Load() *Config {
	// 1. Try the current directory, then the parent one
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}
	if errEnv != nil && !os.IsNotExist(errEnv) {
		slog.Warn("Error loading .env file, relying on OS environment", "error", errEnv)
	}

	// 2. Read every key with its default
	cfg := &Config{
		DatabaseURL:    databaseURL(),
		GRPCAddr:       getEnv("GRPC_ADDR", ":8080"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8081"),
		APIToken:       getEnv("API_TOKEN", defaultAPIToken),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CacheTTL:       getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		CacheCleanup:   getEnvAsDuration("CACHE_CLEANUP", 10*time.Minute),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 30),
		MigrateOnStart: getEnvAsBool("MIGRATE_ON_START", true),
		UseSnapshots:   getEnvAsBool("USE_SNAPSHOTS", true),
	}
	if cfg.APIToken == defaultAPIToken {
		slog.Warn("Using default API_TOKEN. Set this in production.")
	}
	return cfg
}

// databaseURL prefers DB_CONN_STR and otherwise builds a DSN from the DB_* parts
func databaseURL() string {
	if conn := os.Getenv("DB_CONN_STR"); conn != "" {
		return conn
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "portfolio"),
	)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	slog.Warn("Invalid integer value, using default", "key", key, "value", valueStr, "default", fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil && value > 0 {
		return value
	}
	slog.Warn("Invalid number value, using default", "key", key, "value", valueStr, "default", fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	slog.Warn("Invalid boolean value, using default", "key", key, "value", valueStr, "default", fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	slog.Warn("Invalid duration value, using default", "key", key, "value", valueStr, "default", fallback.String())
	return fallback
}
