package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
//
//nolint:govet // Field alignment optimization would reduce readability
type Config struct {
	Server        ServerConfig
	PollAPI       PollAPIConfig
	Session       SessionConfig
	Phone         PhoneConfig
	ReCAPTCHA     ReCAPTCHAConfig
	EventTriggers EventTriggersConfig
	Logging       LoggingConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

type ServerConfig struct {
	Port           string
	GinMode        string
	AppEnv         string
	AllowedOrigins []string
}

// PollAPIConfig points at the postcode lookup / signup backend
type PollAPIConfig struct {
	BaseURL          string
	TimeoutSeconds   int
	LookupMaxRetries int
}

type SessionConfig struct {
	Secret       string
	Issuer       string
	TTLMinutes   int
	CookieName   string
	CookieDomain string
	CookieSecure bool
}

type PhoneConfig struct {
	DefaultRegion string
}

type ReCAPTCHAConfig struct {
	SecretKey string
	SiteKey   string
}

type EventTriggersConfig struct {
	SignupCreatedTriggerURL string
}

type LoggingConfig struct {
	Level string
	Dir   string
}

type ObservabilityConfig struct {
	ExporterEndpoint  string
	ServiceName       string
	ServiceNamespace  string
	ServiceVersion    string
	ServiceInstanceID string
}

type ProfilingConfig struct {
	Enabled               bool
	Endpoint              string
	AppName               string
	SampleTypes           string
	UploadIntervalSeconds int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8081")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("ALLOWED_CORS_ORIGINS", "")
	v.SetDefault("POLL_API_TIMEOUT_SECONDS", 10)
	v.SetDefault("POLL_API_LOOKUP_MAX_RETRIES", 2)
	v.SetDefault("SESSION_ISSUER", "pollreminder-api")
	v.SetDefault("SESSION_TTL_MINUTES", 30)
	v.SetDefault("SESSION_COOKIE_NAME", "signup_session")
	v.SetDefault("SESSION_COOKIE_DOMAIN", "")
	v.SetDefault("SESSION_COOKIE_SECURE", true)
	v.SetDefault("PHONE_DEFAULT_REGION", "GB")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "/app/logs")
	v.SetDefault("O11Y_EXPORTER_ENDPOINT", "")
	v.SetDefault("O11Y_BE_SERVICE_NAME", "pollreminder-api")
	v.SetDefault("O11Y_SERVICE_NAMESPACE", "pollreminder")
	v.SetDefault("O11Y_BE_SERVICE_VERSION", "1.0.0")
	v.SetDefault("O11Y_PROFILING_ENABLED", false)
	v.SetDefault("O11Y_PROFILING_APP_NAME", "pollreminder-api")
	v.SetDefault("O11Y_PROFILING_SAMPLE_TYPES", "cpu,alloc_space,goroutines")
	v.SetDefault("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS", 15)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// REACT_APP_API is what the original widget build used for the same URL
	_ = v.BindEnv("POLL_API_BASE_URL", "POLL_API_BASE_URL", "REACT_APP_API") //nolint:errcheck // only fails on empty key

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	_ = v.ReadInConfig() //nolint:errcheck // Ignore error if .env file doesn't exist

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			GinMode:        v.GetString("GIN_MODE"),
			AppEnv:         v.GetString("APP_ENV"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_CORS_ORIGINS")),
		},
		PollAPI: PollAPIConfig{
			BaseURL:          strings.TrimRight(strings.TrimSpace(v.GetString("POLL_API_BASE_URL")), "/"),
			TimeoutSeconds:   v.GetInt("POLL_API_TIMEOUT_SECONDS"),
			LookupMaxRetries: v.GetInt("POLL_API_LOOKUP_MAX_RETRIES"),
		},
		Session: SessionConfig{
			Secret:       v.GetString("SESSION_SECRET"),
			Issuer:       v.GetString("SESSION_ISSUER"),
			TTLMinutes:   v.GetInt("SESSION_TTL_MINUTES"),
			CookieName:   v.GetString("SESSION_COOKIE_NAME"),
			CookieDomain: v.GetString("SESSION_COOKIE_DOMAIN"),
			CookieSecure: v.GetBool("SESSION_COOKIE_SECURE"),
		},
		Phone: PhoneConfig{
			DefaultRegion: v.GetString("PHONE_DEFAULT_REGION"),
		},
		ReCAPTCHA: ReCAPTCHAConfig{
			SecretKey: v.GetString("RECAPTCHA_SECRET_KEY"),
			SiteKey:   v.GetString("RECAPTCHA_SITE_KEY"),
		},
		EventTriggers: EventTriggersConfig{
			SignupCreatedTriggerURL: v.GetString("SIGNUP_CREATED_TRIGGER_URL"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
			Dir:   v.GetString("LOG_DIR"),
		},
		Observability: ObservabilityConfig{
			ExporterEndpoint:  v.GetString("O11Y_EXPORTER_ENDPOINT"),
			ServiceName:       v.GetString("O11Y_BE_SERVICE_NAME"),
			ServiceNamespace:  v.GetString("O11Y_SERVICE_NAMESPACE"),
			ServiceVersion:    v.GetString("O11Y_BE_SERVICE_VERSION"),
			ServiceInstanceID: v.GetString("SERVICE_INSTANCE_ID"),
		},
		Profiling: ProfilingConfig{
			Enabled:               v.GetBool("O11Y_PROFILING_ENABLED"),
			Endpoint:              v.GetString("O11Y_PROFILING_ENDPOINT"),
			AppName:               v.GetString("O11Y_PROFILING_APP_NAME"),
			SampleTypes:           v.GetString("O11Y_PROFILING_SAMPLE_TYPES"),
			UploadIntervalSeconds: v.GetInt("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func splitList(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.PollAPI.BaseURL == "" {
		return fmt.Errorf("POLL_API_BASE_URL is required")
	}
	parsed, err := url.Parse(c.PollAPI.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("POLL_API_BASE_URL must be an absolute http(s) URL")
	}
	if c.PollAPI.LookupMaxRetries < 0 {
		return fmt.Errorf("POLL_API_LOOKUP_MAX_RETRIES must not be negative")
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.IsProduction() && len(c.Session.Secret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters in production")
	}
	if c.Session.TTLMinutes <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}

	// Only development falls back to localhost origins
	if !c.IsDevelopment() && len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_CORS_ORIGINS is required outside development")
	}

	if c.Profiling.Enabled && c.Profiling.Endpoint == "" {
		return fmt.Errorf("O11Y_PROFILING_ENDPOINT is required when profiling is enabled")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development" || c.Server.GinMode == "debug"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.AppEnv == "production"
}

// SessionTTL returns the form session lifetime
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// SessionTokenTTL is the signed cookie lifetime. It spans two idle periods
// so a re-issued token outlives the sliding form session.
func (c *Config) SessionTokenTTL() time.Duration {
	return 2 * c.SessionTTL()
}

// PollAPITimeout returns the per-request timeout for the poll API
func (c *Config) PollAPITimeout() time.Duration {
	return time.Duration(c.PollAPI.TimeoutSeconds) * time.Second
}

// RecaptchaEnabled reports whether submissions must carry a reCAPTCHA token
func (c *Config) RecaptchaEnabled() bool {
	return c.ReCAPTCHA.SecretKey != ""
}
