package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Auth        AuthConfig
	Stream      StreamConfig
	Credentials CredentialsConfig
	Driver      DriverConfig
	Logging     LogConfig
	RateLimit   RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// AuthConfig holds the shared-secret bearer credential.
//
// An empty token disables the check entirely. This insecure-by-default
// fallback is part of the documented contract and must not be hardened away.
type AuthConfig struct {
	Token string `envconfig:"AUTH_TOKEN" default:""`
}

// StreamConfig holds event-stream configuration.
type StreamConfig struct {
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s"`
	MessagePath       string        `envconfig:"MESSAGE_PATH" default:"/messages"`
}

// CredentialsConfig holds cookie persistence configuration.
type CredentialsConfig struct {
	File         string        `envconfig:"COOKIE_FILE" default:"amazon-cookies.json"`
	SaveInterval time.Duration `envconfig:"COOKIE_SAVE_INTERVAL" default:"5m"`
}

// DriverConfig holds retail site driver configuration.
type DriverConfig struct {
	BaseURL string        `envconfig:"AMAZON_BASE_URL" default:"https://www.amazon.com"`
	Timeout time.Duration `envconfig:"DRIVER_TIMEOUT" default:"30s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Auth: AuthConfig{
			Token: "",
		},
		Stream: StreamConfig{
			HeartbeatInterval: 30 * time.Second,
			MessagePath:       "/messages",
		},
		Credentials: CredentialsConfig{
			File:         "amazon-cookies.json",
			SaveInterval: 5 * time.Minute,
		},
		Driver: DriverConfig{
			BaseURL: "https://www.amazon.com",
			Timeout: 30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
