// Package config reads runtime settings from the environment, optionally seeded
// from a .env file. Load fails fast on missing or malformed values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/monocle-dev/keywatch/internal/scheduler"
	"github.com/monocle-dev/keywatch/internal/services"
	"github.com/monocle-dev/keywatch/internal/types"
	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	JWTSecret   string

	CheckTimeout      time.Duration
	UserAgent         string
	RequestDelay      time.Duration
	ExpiryWarningDays int
	FailurePolicy     scheduler.FailurePolicy
	NotifyOnFailure   bool

	RetryMax     int
	RetryBackoff time.Duration

	CheckSchedule       string
	CleanupSchedule     string
	ResultRetentionDays int
	LockTTL             time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string

	ClientURL      string
	AllowedOrigins string

	LogLevel  string
	LogPretty bool
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "3000")
	v.SetDefault("CHECK_TIMEOUT", types.DefaultCheckTimeout)
	v.SetDefault("USER_AGENT", types.DefaultUserAgent)
	v.SetDefault("REQUEST_DELAY", scheduler.DefaultRequestDelay)
	v.SetDefault("EXPIRY_WARNING_DAYS", 7)
	v.SetDefault("FAILURE_POLICY", string(scheduler.FailurePolicyHold))
	v.SetDefault("NOTIFY_ON_FAILURE", true)
	v.SetDefault("RETRY_MAX", 3)
	v.SetDefault("RETRY_BACKOFF", time.Minute)
	v.SetDefault("CHECK_SCHEDULE", "0 0 * * *")
	v.SetDefault("CLEANUP_SCHEDULE", "0 2 * * 0")
	v.SetDefault("RESULT_RETENTION_DAYS", 90)
	v.SetDefault("LOCK_TTL", 2*time.Minute)
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
}

// Load reads .env when present, then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	policy, err := scheduler.ParseFailurePolicy(v.GetString("FAILURE_POLICY"))

	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:         strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisURL:            strings.TrimSpace(v.GetString("REDIS_URL")),
		Port:                v.GetString("PORT"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		CheckTimeout:        v.GetDuration("CHECK_TIMEOUT"),
		UserAgent:           v.GetString("USER_AGENT"),
		RequestDelay:        v.GetDuration("REQUEST_DELAY"),
		ExpiryWarningDays:   v.GetInt("EXPIRY_WARNING_DAYS"),
		FailurePolicy:       policy,
		NotifyOnFailure:     v.GetBool("NOTIFY_ON_FAILURE"),
		RetryMax:            v.GetInt("RETRY_MAX"),
		RetryBackoff:        v.GetDuration("RETRY_BACKOFF"),
		CheckSchedule:       v.GetString("CHECK_SCHEDULE"),
		CleanupSchedule:     v.GetString("CLEANUP_SCHEDULE"),
		ResultRetentionDays: v.GetInt("RESULT_RETENTION_DAYS"),
		LockTTL:             v.GetDuration("LOCK_TTL"),
		SMTPHost:            v.GetString("SMTP_HOST"),
		SMTPPort:            v.GetString("SMTP_PORT"),
		SMTPUsername:        v.GetString("SMTP_USERNAME"),
		SMTPPassword:        v.GetString("SMTP_PASSWORD"),
		SMTPSender:          v.GetString("SMTP_SENDER"),
		ClientURL:           v.GetString("CLIENT_URL"),
		AllowedOrigins:      v.GetString("ALLOWED_ORIGINS"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogPretty:           v.GetBool("LOG_PRETTY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings every command depends on
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.CheckTimeout <= 0 {
		return fmt.Errorf("CHECK_TIMEOUT must be positive, got %s", c.CheckTimeout)
	}

	if c.RequestDelay < 0 {
		return fmt.Errorf("REQUEST_DELAY must not be negative, got %s", c.RequestDelay)
	}

	if c.ExpiryWarningDays < 1 {
		return fmt.Errorf("EXPIRY_WARNING_DAYS must be a positive integer, got %d", c.ExpiryWarningDays)
	}

	if c.RetryMax < 0 {
		return fmt.Errorf("RETRY_MAX must not be negative, got %d", c.RetryMax)
	}

	if c.ResultRetentionDays < 0 {
		return fmt.Errorf("RESULT_RETENTION_DAYS must not be negative, got %d", c.ResultRetentionDays)
	}

	return nil
}

func (c *Config) CheckConfig() types.CheckConfig {
	cfg := types.DefaultCheckConfig()
	cfg.Timeout = c.CheckTimeout

	if c.UserAgent != "" {
		cfg.UserAgent = c.UserAgent
	}

	return cfg
}

func (c *Config) SMTPConfig() services.SMTPConfig {
	return services.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		Sender:   c.SMTPSender,
	}
}

func (c *Config) RunnerOptions() scheduler.Options {
	return scheduler.Options{
		RequestDelay:    c.RequestDelay,
		WarningDays:     c.ExpiryWarningDays,
		FailurePolicy:   c.FailurePolicy,
		NotifyOnFailure: c.NotifyOnFailure,
	}
}

func (c *Config) ScheduleConfig() scheduler.ScheduleConfig {
	return scheduler.ScheduleConfig{
		CheckSpec:     c.CheckSchedule,
		CleanupSpec:   c.CleanupSchedule,
		RetentionDays: c.ResultRetentionDays,
		Retry:         scheduler.RetryPolicy{MaxRetries: c.RetryMax, Backoff: c.RetryBackoff},
	}
}

func (c *Config) Origins() []string {
	return types.BuildAllowedOrigins(c.ClientURL, c.AllowedOrigins)
}
