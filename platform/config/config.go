// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// GeocoderConfig provides settings for the external geocoding provider.
type GeocoderConfig interface {
	GetGeocoderBaseURL() string
	GetGeocoderTimeout() time.Duration
	GetGeocoderRatePerSecond() float64
	IsGeocoderEnabled() bool
}

// CRMConfig provides settings for the CRM write-back collaborator.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMClientID() string
	GetCRMClientSecret() string
	GetCRMTimeout() time.Duration
	IsCRMEnabled() bool
}

// AlertConfig provides settings for operator alert delivery.
type AlertConfig interface {
	GetAlertEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetAlertFromName() string
	GetAlertFromAddress() string
	GetAlertRecipients() []string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	HTTPAddr         string
	DatabaseURL      string
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	GeocoderBaseURL  string
	GeocoderTimeout  time.Duration
	GeocoderRate     float64
	CRMBaseURL       string
	CRMClientID      string
	CRMClientSecret  string
	CRMTimeout       time.Duration
	AlertEmail       bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	AlertFromName    string
	AlertFromAddress string
	AlertRecipients  []string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// GeocoderConfig implementation
func (c *Config) GetGeocoderBaseURL() string        { return c.GeocoderBaseURL }
func (c *Config) GetGeocoderTimeout() time.Duration { return c.GeocoderTimeout }
func (c *Config) GetGeocoderRatePerSecond() float64 { return c.GeocoderRate }
func (c *Config) IsGeocoderEnabled() bool           { return c.GeocoderBaseURL != "" }

// CRMConfig implementation
func (c *Config) GetCRMBaseURL() string        { return c.CRMBaseURL }
func (c *Config) GetCRMClientID() string       { return c.CRMClientID }
func (c *Config) GetCRMClientSecret() string   { return c.CRMClientSecret }
func (c *Config) GetCRMTimeout() time.Duration { return c.CRMTimeout }
func (c *Config) IsCRMEnabled() bool           { return c.CRMBaseURL != "" }

// AlertConfig implementation
func (c *Config) GetAlertEmailEnabled() bool   { return c.AlertEmail && c.SMTPHost != "" }
func (c *Config) GetSMTPHost() string          { return c.SMTPHost }
func (c *Config) GetSMTPPort() int             { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string      { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string      { return c.SMTPPassword }
func (c *Config) GetAlertFromName() string     { return c.AlertFromName }
func (c *Config) GetAlertFromAddress() string  { return c.AlertFromAddress }
func (c *Config) GetAlertRecipients() []string { return c.AlertRecipients }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	geocoderTimeout, err := getEnvDuration("GEOCODER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	crmTimeout, err := getEnvDuration("CRM_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	geocoderRate, err := getEnvFloat("GEOCODER_RATE_PER_SECOND", 1.0)
	if err != nil {
		return nil, err
	}

	smtpPort, err := getEnvInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	asynqConcurrency, err := getEnvInt("ASYNQ_CONCURRENCY", 10)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:     corsAllowAll,
		CORSOrigins:      corsOrigins,
		CORSAllowCreds:   strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: asynqConcurrency,
		GeocoderBaseURL:  getEnv("GEOCODER_BASE_URL", "https://api.zippopotam.us/us"),
		GeocoderTimeout:  geocoderTimeout,
		GeocoderRate:     geocoderRate,
		CRMBaseURL:       getEnv("CRM_BASE_URL", ""),
		CRMClientID:      getEnv("CRM_CLIENT_ID", ""),
		CRMClientSecret:  getEnv("CRM_CLIENT_SECRET", ""),
		CRMTimeout:       crmTimeout,
		AlertEmail:       strings.EqualFold(getEnv("ALERT_EMAIL_ENABLED", "false"), "true"),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         smtpPort,
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		AlertFromName:    getEnv("ALERT_FROM_NAME", "Lead Router"),
		AlertFromAddress: getEnv("ALERT_FROM_ADDRESS", ""),
		AlertRecipients:  splitCSV(getEnv("ALERT_RECIPIENTS", "")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" && !strings.EqualFold(cfg.Env, "development") {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required outside development")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return value, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return value, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsWildcard(values []string) bool {
	for _, v := range values {
		if v == "*" {
			return true
		}
	}
	return false
}
