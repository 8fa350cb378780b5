package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8081",
			AppEnv:         "production",
			AllowedOrigins: []string{"https://remind.example.org"},
		},
		PollAPI: PollAPIConfig{
			BaseURL:          "https://api.example.org",
			TimeoutSeconds:   10,
			LookupMaxRetries: 2,
		},
		Session: SessionConfig{
			Secret:     "0123456789abcdef0123456789abcdef",
			TTLMinutes: 30,
		},
	}
}

// isolateEnv clears the variables Load reads so the host environment cannot leak in
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"PORT", "GIN_MODE", "APP_ENV", "ALLOWED_CORS_ORIGINS", "POLL_API_BASE_URL", "REACT_APP_API",
		"POLL_API_TIMEOUT_SECONDS", "POLL_API_LOOKUP_MAX_RETRIES", "SESSION_SECRET", "SESSION_TTL_MINUTES",
		"SESSION_COOKIE_SECURE", "PHONE_DEFAULT_REGION", "RECAPTCHA_SECRET_KEY", "LOG_LEVEL", "LOG_DIR",
		"O11Y_PROFILING_ENABLED", "O11Y_PROFILING_ENDPOINT", "SIGNUP_CREATED_TRIGGER_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected bool
	}{
		{"development environment", &Config{Server: ServerConfig{AppEnv: "development"}}, true},
		{"debug gin mode", &Config{Server: ServerConfig{GinMode: "debug"}}, true},
		{"production environment", &Config{Server: ServerConfig{AppEnv: "production"}}, false},
		{"release mode", &Config{Server: ServerConfig{GinMode: "release", AppEnv: "production"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.IsDevelopment())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "PORT is required"},
		{"missing base url", func(c *Config) { c.PollAPI.BaseURL = "" }, "POLL_API_BASE_URL is required"},
		{"relative base url", func(c *Config) { c.PollAPI.BaseURL = "/api" }, "absolute http(s) URL"},
		{"negative retries", func(c *Config) { c.PollAPI.LookupMaxRetries = -1 }, "must not be negative"},
		{"missing secret", func(c *Config) { c.Session.Secret = "" }, "SESSION_SECRET is required"},
		{"short secret in production", func(c *Config) { c.Session.Secret = "short" }, "at least 32 characters"},
		{"short secret in development", func(c *Config) {
			c.Server.AppEnv = "development"
			c.Session.Secret = "short"
		}, ""},
		{"zero ttl", func(c *Config) { c.Session.TTLMinutes = 0 }, "SESSION_TTL_MINUTES must be positive"},
		{"no origins in production", func(c *Config) { c.Server.AllowedOrigins = nil }, "ALLOWED_CORS_ORIGINS is required"},
		{"no origins in staging", func(c *Config) {
			c.Server.AppEnv = "staging"
			c.Server.AllowedOrigins = nil
		}, "ALLOWED_CORS_ORIGINS is required"},
		{"no origins in development", func(c *Config) {
			c.Server.AppEnv = "development"
			c.Server.AllowedOrigins = nil
		}, ""},
		{"profiling without endpoint", func(c *Config) { c.Profiling.Enabled = true }, "O11Y_PROFILING_ENDPOINT is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("APP_ENV", "development")
	t.Setenv("POLL_API_BASE_URL", "https://api.example.org/")
	t.Setenv("SESSION_SECRET", "dev-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.GinMode)
	assert.Equal(t, "https://api.example.org", cfg.PollAPI.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.PollAPITimeout())
	assert.Equal(t, 2, cfg.PollAPI.LookupMaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
	assert.Equal(t, time.Hour, cfg.SessionTokenTTL())
	assert.Equal(t, "signup_session", cfg.Session.CookieName)
	assert.True(t, cfg.Session.CookieSecure)
	assert.Equal(t, "GB", cfg.Phone.DefaultRegion)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.RecaptchaEnabled())
	assert.Empty(t, cfg.Server.AllowedOrigins)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("GIN_MODE", "debug")
	t.Setenv("ALLOWED_CORS_ORIGINS", "https://a.example.org, https://b.example.org,")
	t.Setenv("POLL_API_BASE_URL", "http://poll-api:8000")
	t.Setenv("POLL_API_LOOKUP_MAX_RETRIES", "0")
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SESSION_TTL_MINUTES", "5")
	t.Setenv("PHONE_DEFAULT_REGION", "IE")
	t.Setenv("RECAPTCHA_SECRET_KEY", "recaptcha-secret")
	t.Setenv("SIGNUP_CREATED_TRIGGER_URL", "https://hooks.example.org/signup")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://a.example.org", "https://b.example.org"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "http://poll-api:8000", cfg.PollAPI.BaseURL)
	assert.Equal(t, 0, cfg.PollAPI.LookupMaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL())
	assert.Equal(t, "IE", cfg.Phone.DefaultRegion)
	assert.True(t, cfg.RecaptchaEnabled())
	assert.Equal(t, "https://hooks.example.org/signup", cfg.EventTriggers.SignupCreatedTriggerURL)
}

func TestLoad_ReactAppAPIFallback(t *testing.T) {
	isolateEnv(t)
	t.Setenv("APP_ENV", "development")
	t.Setenv("REACT_APP_API", "https://legacy.example.org")
	t.Setenv("SESSION_SECRET", "dev-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://legacy.example.org", cfg.PollAPI.BaseURL)
}

func TestLoad_ValidationFailure(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()

	assert.Error(t, err)
	assert.Nil(t, cfg)
}
