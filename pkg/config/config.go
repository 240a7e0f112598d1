// Package config loads and validates the scheduler's environment-variable
// configuration (spec §4.7), grounded on pkg/database.LoadConfigFromEnv's
// getEnvOrDefault idiom and cmd/tarsy/main.go's godotenv.Load usage.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/tom-doerr/dspy-scheduling/pkg/store"
)

// Config is the umbrella configuration object threaded through
// cmd/scheduler/main.go into every component.
type Config struct {
	// OpenRouterAPIKey authenticates outbound LLM calls. Required.
	OpenRouterAPIKey string

	// DatabaseURL is a postgres:// connection string.
	DatabaseURL string

	// DSPyModel names the model id passed to every LLM call, of the form
	// "<provider>/<model>" (e.g. "openrouter/deepseek/deepseek-v3.2-exp").
	DSPyModel string
	MaxTokens int

	SchedulerIntervalSeconds int
	SchedulerEnabled         bool

	FallbackStartHour     int
	FallbackDurationHours int

	Host string
	Port int

	LogLevel  string
	LogFormat string

	// ChatRetentionDays / LLMCallRetentionDays bound how long transcript
	// and audit rows live before the retention service trims them.
	ChatRetentionDays    int
	LLMCallRetentionDays int
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvBoolOrDefault(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// Load reads Config from the process environment, applying the same
// defaults as the original's pydantic Settings model, and validates the
// result before returning it.
func Load() (*Config, error) {
	interval, err := getEnvIntOrDefault("SCHEDULER_INTERVAL_SECONDS", 5)
	if err != nil {
		return nil, err
	}
	enabled, err := getEnvBoolOrDefault("SCHEDULER_ENABLED", true)
	if err != nil {
		return nil, err
	}
	startHour, err := getEnvIntOrDefault("FALLBACK_START_HOUR", 9)
	if err != nil {
		return nil, err
	}
	durationHours, err := getEnvIntOrDefault("FALLBACK_DURATION_HOURS", 1)
	if err != nil {
		return nil, err
	}
	port, err := getEnvIntOrDefault("PORT", 5000)
	if err != nil {
		return nil, err
	}
	maxTokens, err := getEnvIntOrDefault("MAX_TOKENS", 1024)
	if err != nil {
		return nil, err
	}
	chatRetention, err := getEnvIntOrDefault("CHAT_RETENTION_DAYS", 90)
	if err != nil {
		return nil, err
	}
	llmCallRetention, err := getEnvIntOrDefault("LLM_CALL_RETENTION_DAYS", 30)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		OpenRouterAPIKey:         os.Getenv("OPENROUTER_API_KEY"),
		DatabaseURL:              getEnvOrDefault("DATABASE_URL", "postgres://localhost:5432/scheduling?sslmode=disable"),
		DSPyModel:                getEnvOrDefault("DSPY_MODEL", "openrouter/deepseek/deepseek-v3.2-exp"),
		MaxTokens:                maxTokens,
		SchedulerIntervalSeconds: interval,
		SchedulerEnabled:         enabled,
		FallbackStartHour:        startHour,
		FallbackDurationHours:    durationHours,
		Host:                     getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                     port,
		LogLevel:                 getEnvOrDefault("LOG_LEVEL", "INFO"),
		LogFormat:                getEnvOrDefault("LOG_FORMAT", "json"),
		ChatRetentionDays:        chatRetention,
		LLMCallRetentionDays:     llmCallRetention,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the rules spec §4.7 names: non-empty API key, a
// provider-qualified model id, an interval within (0, 3600], an hour
// within [0, 23], a positive fallback duration, and a recognized log
// format.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OpenRouterAPIKey) == "" {
		return NewValidationError("OPENROUTER_API_KEY", fmt.Errorf("must not be empty"))
	}
	if !strings.Contains(c.DSPyModel, "/") {
		return NewValidationError("DSPY_MODEL", fmt.Errorf("must be of the form <provider>/<model>, got %q", c.DSPyModel))
	}
	if c.SchedulerIntervalSeconds <= 0 || c.SchedulerIntervalSeconds > 3600 {
		return NewValidationError("SCHEDULER_INTERVAL_SECONDS", fmt.Errorf("must be in (0, 3600], got %d", c.SchedulerIntervalSeconds))
	}
	if c.FallbackStartHour < 0 || c.FallbackStartHour > 23 {
		return NewValidationError("FALLBACK_START_HOUR", fmt.Errorf("must be in [0, 23], got %d", c.FallbackStartHour))
	}
	if c.FallbackDurationHours <= 0 {
		return NewValidationError("FALLBACK_DURATION_HOURS", fmt.Errorf("must be positive, got %d", c.FallbackDurationHours))
	}
	switch c.LogFormat {
	case "json", "standard":
	default:
		return NewValidationError("LOG_FORMAT", fmt.Errorf("must be one of json, standard, got %q", c.LogFormat))
	}
	return nil
}

// StoreConfig parses DatabaseURL into the connection parameters
// store.Open expects.
func (c *Config) StoreConfig() (store.Config, error) {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return store.Config{}, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	port, _ := strconv.Atoi(u.Port())
	password, _ := u.User.Password()
	sslMode := "disable"
	if m := u.Query().Get("sslmode"); m != "" {
		sslMode = m
	}
	return store.Config{
		Host:         u.Hostname(),
		Port:         port,
		User:         u.User.Username(),
		Password:     password,
		Database:     strings.TrimPrefix(u.Path, "/"),
		SSLMode:      sslMode,
		MaxOpenConns: 25,
		MaxIdleConns: 10,
	}, nil
}
