// Package config loads and validates the server configuration from the environment using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// OTP store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DatabaseURL is the Postgres DSN. Empty means users and sessions are kept in memory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// OTPStore selects the OTP request backend: postgres, redis or memory.
	OTPStore string `mapstructure:"OTP_STORE"`
	RedisURL string `mapstructure:"REDIS_URL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	OTPSalt   string `mapstructure:"OTP_SALT"`

	OTPLength      int           `mapstructure:"OTP_LENGTH"`
	OTPTTL         time.Duration `mapstructure:"OTP_TTL"`
	OTPMaxAttempts int           `mapstructure:"OTP_MAX_ATTEMPTS"`
	OTPResendAfter time.Duration `mapstructure:"OTP_RESEND_AFTER"`
	// DevMode returns issued codes in the API response. Refused in production.
	DevMode bool `mapstructure:"OTP_DEV_MODE"`

	AccessTokenTTL time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	SessionTTL     time.Duration `mapstructure:"SESSION_TTL"`

	SMSGatewayURL    string `mapstructure:"SMS_GATEWAY_URL"`
	SMSGatewayAPIKey string `mapstructure:"SMS_GATEWAY_API_KEY"`
	SMSSenderID      string `mapstructure:"SMS_SENDER_ID"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("OTP_STORE", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("OTP_SALT", "")
	v.SetDefault("OTP_LENGTH", 4)
	v.SetDefault("OTP_TTL", "120s")
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_RESEND_AFTER", "30s")
	v.SetDefault("OTP_DEV_MODE", false)
	v.SetDefault("ACCESS_TOKEN_TTL", "24h")
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("SMS_GATEWAY_URL", "")
	v.SetDefault("SMS_GATEWAY_API_KEY", "")
	v.SetDefault("SMS_SENDER_ID", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.OTPStore = strings.ToLower(strings.TrimSpace(cfg.OTPStore))
	if cfg.OTPStore == "" {
		cfg.OTPStore = StoreMemory
		if cfg.DatabaseURL != "" {
			cfg.OTPStore = StorePostgres
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("config: PORT must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET environment variable is required")
	}
	if c.OTPSalt == "" {
		return errors.New("config: OTP_SALT environment variable is required")
	}
	if c.OTPLength < 4 || c.OTPLength > 8 {
		return errors.New("config: OTP_LENGTH must be between 4 and 8")
	}
	if c.OTPTTL <= 0 {
		return errors.New("config: OTP_TTL must be positive")
	}
	if c.OTPMaxAttempts < 1 {
		return errors.New("config: OTP_MAX_ATTEMPTS must be at least 1")
	}
	if c.OTPResendAfter < 0 {
		return errors.New("config: OTP_RESEND_AFTER must not be negative")
	}
	if c.AccessTokenTTL <= 0 || c.SessionTTL <= 0 {
		return errors.New("config: ACCESS_TOKEN_TTL and SESSION_TTL must be positive")
	}

	switch c.OTPStore {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: OTP_STORE=postgres requires DATABASE_URL")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("config: OTP_STORE=redis requires REDIS_URL")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("config: unknown OTP_STORE %q", c.OTPStore)
	}

	if c.IsProduction() {
		if c.DevMode {
			return errors.New("config: OTP_DEV_MODE must not be true when APP_ENV=production")
		}
		if c.DatabaseURL == "" || c.OTPStore == StoreMemory {
			return errors.New("config: in-memory storage is not allowed when APP_ENV=production")
		}
		if !c.SMSGatewayConfigured() {
			return errors.New("config: SMS_GATEWAY_URL and SMS_GATEWAY_API_KEY are required when APP_ENV=production")
		}
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SMSGatewayConfigured reports whether codes should go to the HTTP gateway instead of the log.
func (c *Config) SMSGatewayConfigured() bool {
	return c.SMSGatewayURL != "" && c.SMSGatewayAPIKey != ""
}

// AllowedOrigins returns the CORS origins from the comma-separated config.
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
