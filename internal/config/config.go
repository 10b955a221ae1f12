package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	Database struct {
		URL string
	}

	Catalog struct {
		Path string
	}

	Scheduler struct {
		FetchInterval time.Duration
		CycleTimeout  time.Duration
		RunOnce       bool
	}

	Fetch struct {
		UserAgent      string
		TimeoutDefault time.Duration
		TimeoutSlow    time.Duration
		MaxAttempts    int
		RateLimitBase  time.Duration
		TransientDelay time.Duration
		InterCallDelay time.Duration
	}

	Push struct {
		Enabled   bool
		Transport string
		Timeout   time.Duration
		Threshold int
		Cooldown  time.Duration
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("FIBER_PORT", "8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("FIBER_READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("FIBER_WRITE_TIMEOUT", "10s"))
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	// Database configuration
	cfg.Database.URL = getEnv("DATABASE_URL", "")
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Catalog configuration
	cfg.Catalog.Path = getEnv("CATALOG_PATH", "config/locations.yml")

	// Scheduler configuration
	cfg.Scheduler.FetchInterval = parseDuration(getEnv("FETCH_INTERVAL", "20m"))
	cfg.Scheduler.CycleTimeout = parseDuration(getEnv("CYCLE_TIMEOUT", "15m"))
	cfg.Scheduler.RunOnce = parseBool(getEnv("RUN_ONCE", "false"))

	// Fetch configuration
	cfg.Fetch.UserAgent = getEnv("FETCH_USER_AGENT", "SurfLamp-Agent/1.0")
	cfg.Fetch.TimeoutDefault = parseDuration(getEnv("FETCH_TIMEOUT_DEFAULT", "15s"))
	cfg.Fetch.TimeoutSlow = parseDuration(getEnv("FETCH_TIMEOUT_SLOW", "30s"))
	cfg.Fetch.MaxAttempts = parseInt(getEnv("FETCH_MAX_ATTEMPTS", "3"))
	cfg.Fetch.RateLimitBase = parseDuration(getEnv("RATE_LIMIT_BASE_DELAY", "60s"))
	cfg.Fetch.TransientDelay = parseDuration(getEnv("TRANSIENT_RETRY_DELAY", "30s"))
	cfg.Fetch.InterCallDelay = parseDuration(getEnv("INTER_CALL_DELAY", "3s"))

	// Push configuration
	cfg.Push.Enabled = parseBool(getEnv("PUSH_ENABLED", "false"))
	cfg.Push.Transport = getEnv("ARDUINO_TRANSPORT", "http")
	cfg.Push.Timeout = parseDuration(getEnv("PUSH_TIMEOUT", "5s"))
	cfg.Push.Threshold = parseInt(getEnv("PUSH_FAILURE_THRESHOLD", "3"))
	cfg.Push.Cooldown = parseDuration(getEnv("PUSH_RETRY_COOLDOWN", "30m"))

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseBool(value string) bool {
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		zap.L().Warn("Failed to parse bool", zap.String("value", value), zap.Error(err))
		return false
	}
	return boolValue
}
