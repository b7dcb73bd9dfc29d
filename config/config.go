// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Supported generation providers.
const (
	ProviderMock      = "mock"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration.
type Config struct {
	Provider        string // "mock", "openai" or "anthropic"
	Model           string // provider model id; empty selects the adapter default
	DBPath          string // world store SQLite path; empty keeps the world in memory
	MemoryThreshold int    // cumulative tokens before a conversation is marked for consolidation
	MaxTurnTokens   int
	Stream          bool
	LogLevel        string // "debug", "info", "warn" or "error"
	LogJSON         bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Provider:        strings.ToLower(getEnv("GENAI_PROVIDER", ProviderMock)),
		Model:           getEnv("GENAI_MODEL", ""),
		DBPath:          getEnv("DB_PATH", ""),
		MemoryThreshold: getEnvInt("MEMORY_THRESHOLD", 1000),
		MaxTurnTokens:   getEnvInt("MAX_TURN_TOKENS", 300),
		Stream:          getEnvBool("GENAI_STREAM", true),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogJSON:         getEnvBool("LOG_JSON", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all configuration fields are coherent.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderMock, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("GENAI_PROVIDER %q is not one of mock, openai, anthropic", c.Provider)
	}
	if c.MemoryThreshold <= 0 {
		return fmt.Errorf("MEMORY_THRESHOLD must be > 0")
	}
	if c.MaxTurnTokens <= 0 {
		return fmt.Errorf("MAX_TURN_TOKENS must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
