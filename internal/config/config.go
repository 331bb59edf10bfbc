package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL and the email sender
// settings are required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	APIJWTSecret    string
	LogLevel        string

	// Database
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrationsPath string

	// Delivery pipeline
	Workers       int
	PauseOnNone   time.Duration
	PauseOnError  time.Duration
	LeaseMaxAge   time.Duration
	ReapInterval  time.Duration
	SendRateLimit int

	Email EmailConfig
}

// EmailConfig describes the SMTP relay and sender identity.
type EmailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
	Timeout     time.Duration
	TLSPolicy   string
}

var defaults = map[string]any{
	"HTTP_PORT":        "8080",
	"READ_TIMEOUT":     5 * time.Second,
	"WRITE_TIMEOUT":    10 * time.Second,
	"SHUTDOWN_TIMEOUT": 30 * time.Second,
	"LOG_LEVEL":        "info",

	"DB_MAX_CONNS":    25,
	"DB_MIN_CONNS":    5,
	"MIGRATIONS_PATH": "migrations",

	"NOTIFICATION_WORKERS": 1,
	"PAUSE_ON_NONE":        15 * time.Second,
	"PAUSE_ON_ERROR":       30 * time.Second,
	"LEASE_MAX_AGE":        time.Minute,
	"REAP_INTERVAL":        5 * time.Second,
	"SEND_RATE_LIMIT":      0,

	"EMAIL_PORT":    587,
	"EMAIL_TIMEOUT": 15 * time.Second,
	"EMAIL_TLS":     "opportunistic",
}

// Load reads configuration from the environment. When CONFIG_FILE is set the
// file is read first and environment variables override its values.
func Load() (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		HTTPPort:        v.GetString("HTTP_PORT"),
		ReadTimeout:     v.GetDuration("READ_TIMEOUT"),
		WriteTimeout:    v.GetDuration("WRITE_TIMEOUT"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		APIJWTSecret:    v.GetString("API_JWT_SECRET"),
		LogLevel:        v.GetString("LOG_LEVEL"),

		DatabaseURL:    v.GetString("DATABASE_URL"),
		DBMaxConns:     v.GetInt32("DB_MAX_CONNS"),
		DBMinConns:     v.GetInt32("DB_MIN_CONNS"),
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),

		Workers:       v.GetInt("NOTIFICATION_WORKERS"),
		PauseOnNone:   v.GetDuration("PAUSE_ON_NONE"),
		PauseOnError:  v.GetDuration("PAUSE_ON_ERROR"),
		LeaseMaxAge:   v.GetDuration("LEASE_MAX_AGE"),
		ReapInterval:  v.GetDuration("REAP_INTERVAL"),
		SendRateLimit: v.GetInt("SEND_RATE_LIMIT"),

		Email: EmailConfig{
			Host:        v.GetString("EMAIL_HOST"),
			Port:        v.GetInt("EMAIL_PORT"),
			Username:    v.GetString("EMAIL_USERNAME"),
			Password:    v.GetString("EMAIL_PASSWORD"),
			FromName:    v.GetString("EMAIL_FROM_NAME"),
			FromAddress: v.GetString("EMAIL_FROM_ADDRESS"),
			Timeout:     v.GetDuration("EMAIL_TIMEOUT"),
			TLSPolicy:   strings.ToLower(v.GetString("EMAIL_TLS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.DatabaseURL == "" {
		result = multierror.Append(result, errors.New("DATABASE_URL is required"))
	}
	if c.Workers < 1 {
		result = multierror.Append(result, errors.New("NOTIFICATION_WORKERS must be at least 1"))
	}
	if c.PauseOnNone <= 0 || c.PauseOnError <= 0 {
		result = multierror.Append(result, errors.New("PAUSE_ON_NONE and PAUSE_ON_ERROR must be positive"))
	}
	if c.ReapInterval <= 0 {
		result = multierror.Append(result, errors.New("REAP_INTERVAL must be positive"))
	}
	// A lease must survive at least one full send before the reaper may take it.
	if c.LeaseMaxAge <= c.Email.Timeout {
		result = multierror.Append(result, fmt.Errorf("LEASE_MAX_AGE (%s) must exceed EMAIL_TIMEOUT (%s)", c.LeaseMaxAge, c.Email.Timeout))
	}
	if c.SendRateLimit < 0 {
		result = multierror.Append(result, errors.New("SEND_RATE_LIMIT must not be negative"))
	}
	if err := c.Email.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// Validate checks the settings the SMTP sender cannot work without.
func (c EmailConfig) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(c.Host) == "" {
		result = multierror.Append(result, errors.New("EMAIL_HOST is required"))
	}
	if strings.TrimSpace(c.FromAddress) == "" {
		result = multierror.Append(result, errors.New("EMAIL_FROM_ADDRESS is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("EMAIL_PORT %d is out of range", c.Port))
	}
	switch c.TLSPolicy {
	case "opportunistic", "mandatory", "none":
	default:
		result = multierror.Append(result, fmt.Errorf("EMAIL_TLS %q must be opportunistic, mandatory or none", c.TLSPolicy))
	}

	return result.ErrorOrNil()
}
