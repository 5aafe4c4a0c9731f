// Package config loads runtime configuration in layers: defaults, then an
// optional TOML file, then environment variables. Flags in main override
// the listen address and database path on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds everything the process needs at start.
type Config struct {
	Addr   string `toml:"addr"`
	DBPath string `toml:"db_path"`

	JWTSecret       string `toml:"jwt_secret"`
	TokenTTLMinutes int    `toml:"token_ttl_minutes"`

	GeminiAPIKey  string `toml:"gemini_api_key"`
	GeminiModel   string `toml:"gemini_model"`
	GeminiBaseURL string `toml:"gemini_base_url"`
	// LLMCallLimit caps provider calls spent on a single chat message.
	LLMCallLimit int `toml:"llm_call_limit"`
	// LLMTimeoutSeconds bounds one provider round trip.
	LLMTimeoutSeconds int `toml:"llm_timeout_seconds"`
}

// Load builds the config from defaults, the file at path (skipped when
// empty or absent) and the environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %s: %w", path, err)
			}
		}
	}

	fromEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Addr:              ":8080",
		DBPath:            "data/taskhub.db",
		TokenTTLMinutes:   60,
		GeminiModel:       "gemini-2.0-flash",
		GeminiBaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		LLMCallLimit:      6,
		LLMTimeoutSeconds: 60,
	}
}

func fromEnv(cfg *Config) {
	cfg.Addr = envOrDefault("TASKHUB_ADDR", cfg.Addr)
	cfg.DBPath = envOrDefault("TASKHUB_DB_PATH", cfg.DBPath)
	cfg.JWTSecret = envOrDefault("TASKHUB_JWT_SECRET", cfg.JWTSecret)
	cfg.GeminiAPIKey = envOrDefault("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = envOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.GeminiBaseURL = envOrDefault("GEMINI_BASE_URL", cfg.GeminiBaseURL)

	if v := envInt("TASKHUB_TOKEN_TTL_MINUTES"); v > 0 {
		cfg.TokenTTLMinutes = v
	}
	if v := envInt("TASKHUB_LLM_CALL_LIMIT"); v > 0 {
		cfg.LLMCallLimit = v
	}
	if v := envInt("TASKHUB_LLM_TIMEOUT_SECONDS"); v > 0 {
		cfg.LLMTimeoutSeconds = v
	}
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required (TASKHUB_JWT_SECRET)")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	return nil
}

// ChatEnabled reports whether the chatbot can be served.
func (c *Config) ChatEnabled() bool {
	return c.GeminiAPIKey != ""
}

// envOrDefault returns the environment variable value or fallback when it
// is empty.
func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
