// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Security
	APIKey string // Required for POST /honeypot

	// Callback sink
	CallbackURL     string
	CallbackTimeout time.Duration // Per-attempt delivery timeout
	CallbackRetries int           // Total attempts per dispatch

	// Circuit breaker
	BreakerThreshold int           // Consecutive failures before opening
	BreakerCooldown  time.Duration // Time the breaker stays open

	// Session store
	MaxSessions     int
	SessionTTL      time.Duration
	MaxHistory      int
	CleanupInterval time.Duration

	// Rate limiting
	RateLimitRequests int           // Max admissions per session per window
	RateLimitWindow   time.Duration // Sliding window length

	// Dispatch triggers
	ScoreThreshold       int
	InteractionThreshold int

	// Tracing
	OTLPEndpoint string // Empty disables tracing
}

// Defaults tuned for a single small instance.
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultMaxSessions     = 500
	DefaultSessionTTL      = 30 * time.Minute
	DefaultMaxHistory      = 10
	DefaultCleanupInterval = 5 * time.Minute
	DefaultRateLimit       = 10
	DefaultRateWindow      = 60 * time.Second
	DefaultCallbackTimeout = 10 * time.Second
	DefaultCallbackRetries = 3
	DefaultBreakerThresh   = 5
	DefaultBreakerCooldown = 300 * time.Second
	DefaultScoreThreshold  = 3
	DefaultInteractThresh  = 15
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", DefaultPort),
		Env:                  getEnv("ENV", DefaultEnv),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		APIKey:               os.Getenv("API_KEY"), // Required, no default
		CallbackURL:          os.Getenv("CALLBACK_URL"),
		CallbackTimeout:      getEnvDuration("CALLBACK_TIMEOUT", DefaultCallbackTimeout),
		CallbackRetries:      getEnvInt("CALLBACK_RETRIES", DefaultCallbackRetries),
		BreakerThreshold:     getEnvInt("BREAKER_THRESHOLD", DefaultBreakerThresh),
		BreakerCooldown:      getEnvDuration("BREAKER_COOLDOWN", DefaultBreakerCooldown),
		MaxSessions:          getEnvInt("MAX_SESSIONS", DefaultMaxSessions),
		SessionTTL:           getEnvDuration("SESSION_TTL", DefaultSessionTTL),
		MaxHistory:           getEnvInt("MAX_HISTORY", DefaultMaxHistory),
		CleanupInterval:      getEnvDuration("CLEANUP_INTERVAL", DefaultCleanupInterval),
		RateLimitRequests:    getEnvInt("RATE_LIMIT_REQUESTS", DefaultRateLimit),
		RateLimitWindow:      getEnvDuration("RATE_LIMIT_WINDOW", DefaultRateWindow),
		ScoreThreshold:       getEnvInt("SCORE_THRESHOLD", DefaultScoreThreshold),
		InteractionThreshold: getEnvInt("INTERACTION_THRESHOLD", DefaultInteractThresh),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}

	if c.CallbackURL == "" {
		return fmt.Errorf("CALLBACK_URL is required")
	}
	u, err := url.Parse(c.CallbackURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CALLBACK_URL must be an absolute URL")
	}

	if c.MaxSessions <= 0 {
		return fmt.Errorf("MAX_SESSIONS must be positive")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns the environment variable or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
// Accepts Go duration syntax ("30m") or a bare integer meaning seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
