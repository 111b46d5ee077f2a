package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "API_KEY", "test-key")
	setEnv(t, "CALLBACK_URL", "https://sink.example.com/report")
	setEnv(t, "PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DefaultMaxSessions, cfg.MaxSessions)
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRequests)
	assert.Equal(t, DefaultBreakerCooldown, cfg.BreakerCooldown)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	setEnv(t, "API_KEY", "")
	setEnv(t, "CALLBACK_URL", "https://sink.example.com/report")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY is required")
}

func TestLoad_MissingCallbackURL(t *testing.T) {
	setEnv(t, "API_KEY", "test-key")
	setEnv(t, "CALLBACK_URL", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "CALLBACK_URL is required")
}

func TestLoad_RelativeCallbackURL(t *testing.T) {
	setEnv(t, "API_KEY", "test-key")
	setEnv(t, "CALLBACK_URL", "/not/absolute")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "absolute URL")
}

func TestLoad_DurationFormats(t *testing.T) {
	setEnv(t, "API_KEY", "test-key")
	setEnv(t, "CALLBACK_URL", "https://sink.example.com/report")
	setEnv(t, "SESSION_TTL", "45m")
	setEnv(t, "RATE_LIMIT_WINDOW", "30") // bare seconds

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid config",
			config: Config{
				APIKey:            "k",
				CallbackURL:       "https://sink.example.com/report",
				MaxSessions:       500,
				RateLimitRequests: 10,
				RateLimitWindow:   time.Minute,
			},
			wantErr: "",
		},
		{
			name: "zero max sessions",
			config: Config{
				APIKey:            "k",
				CallbackURL:       "https://sink.example.com/report",
				MaxSessions:       0,
				RateLimitRequests: 10,
				RateLimitWindow:   time.Minute,
			},
			wantErr: "MAX_SESSIONS",
		},
		{
			name: "zero rate window",
			config: Config{
				APIKey:            "k",
				CallbackURL:       "https://sink.example.com/report",
				MaxSessions:       500,
				RateLimitRequests: 10,
			},
			wantErr: "rate limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_EnvHelpers(t *testing.T) {
	cfg := Config{Env: "production"}
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
}
