// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds backend server configuration.
type Config struct {
	Port               string
	GRPCPort           string
	FrontendURL        string
	StoreDriver        string
	DBPath             string
	RedisURL           string
	SessionTTL         time.Duration
	CleanupInterval    time.Duration
	HealthCheckTimeout time.Duration
}

// ClientConfig holds terminal client configuration.
type ClientConfig struct {
	BaseURL           string
	WSURL             string
	StatePath         string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	LogLevel          slog.Level
}

// Load reads server configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8000"),
		GRPCPort:           getEnv("GRPC_PORT", "50051"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
		DBPath:             getEnv("DB_PATH", "./data/newschat.db"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SessionTTL:         getEnvDuration("SESSION_TTL", time.Hour),
		CleanupInterval:    getEnvDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),
		HealthCheckTimeout: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.StoreDriver {
	case StoreSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL cannot be empty")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreSQLite, StoreRedis, c.StoreDriver)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("SESSION_CLEANUP_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// LoadClient reads terminal client configuration from environment variables.
func LoadClient() (*ClientConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	cfg := &ClientConfig{
		BaseURL:           strings.TrimRight(getEnv("CHAT_BASE_URL", "http://localhost:8000"), "/"),
		WSURL:             strings.TrimRight(getEnv("CHAT_WS_URL", ""), "/"),
		StatePath:         getEnv("CHAT_STATE_PATH", home+"/.newschat/state.db"),
		ReconnectAttempts: getEnvInt("CHAT_RECONNECT_ATTEMPTS", 3),
		ReconnectDelay:    getEnvDuration("CHAT_RECONNECT_DELAY", 3*time.Second),
		LogLevel:          getEnvLevel("LOG_LEVEL", slog.LevelWarn),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the client configuration.
func (c *ClientConfig) Validate() error {
	if _, err := parseURL(c.BaseURL, "http", "https"); err != nil {
		return fmt.Errorf("CHAT_BASE_URL: %w", err)
	}
	if c.WSURL != "" {
		if _, err := parseURL(c.WSURL, "http", "https", "ws", "wss"); err != nil {
			return fmt.Errorf("CHAT_WS_URL: %w", err)
		}
	}
	if c.StatePath == "" {
		return fmt.Errorf("CHAT_STATE_PATH cannot be empty")
	}
	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("CHAT_RECONNECT_ATTEMPTS must be >= 0")
	}
	if c.ReconnectDelay < 0 {
		return fmt.Errorf("CHAT_RECONNECT_DELAY must be >= 0")
	}
	return nil
}

// RealtimeURL returns the base URL for the WebSocket transport, defaulting to
// the REST base URL.
func (c *ClientConfig) RealtimeURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	return c.BaseURL
}

func parseURL(raw string, schemes ...string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(schemes, u.Scheme) {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
