package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_DRIVER", "DB_PATH", "SESSION_TTL", "SESSION_CLEANUP_INTERVAL"} {
		t.Setenv(key, "")
	}
	t.Setenv("PORT", "8000")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "./data/newschat.db")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("SESSION_CLEANUP_INTERVAL", "300")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %v, want 1h", cfg.SessionTTL)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port:            "8000",
		StoreDriver:     StoreSQLite,
		DBPath:          "x.db",
		SessionTTL:      time.Hour,
		CleanupInterval: time.Minute,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty port", mutate: func(c *Config) { c.Port = "" }, wantErr: "PORT"},
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "mongo" }, wantErr: "STORE_DRIVER"},
		{name: "sqlite without path", mutate: func(c *Config) { c.DBPath = "" }, wantErr: "DB_PATH"},
		{name: "redis without url", mutate: func(c *Config) { c.StoreDriver = StoreRedis }, wantErr: "REDIS_URL"},
		{name: "zero ttl", mutate: func(c *Config) { c.SessionTTL = 0 }, wantErr: "SESSION_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{value: "90s", want: 90 * time.Second},
		{value: "2m", want: 2 * time.Minute},
		{value: "45", want: 45 * time.Second},
		{value: "soon", want: time.Hour},
	}
	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.value)
		if got := getEnvDuration("TEST_DURATION", time.Hour); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestLoadClient(t *testing.T) {
	t.Setenv("CHAT_BASE_URL", "https://chat.example.com/")
	t.Setenv("CHAT_WS_URL", "")
	t.Setenv("CHAT_STATE_PATH", t.TempDir()+"/state.db")
	t.Setenv("CHAT_RECONNECT_ATTEMPTS", "5")
	t.Setenv("CHAT_RECONNECT_DELAY", "250ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient failed: %v", err)
	}
	if cfg.BaseURL != "https://chat.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.RealtimeURL() != cfg.BaseURL {
		t.Errorf("RealtimeURL should default to BaseURL, got %q", cfg.RealtimeURL())
	}
	if cfg.ReconnectAttempts != 5 || cfg.ReconnectDelay != 250*time.Millisecond {
		t.Errorf("unexpected reconnect settings %d %v", cfg.ReconnectAttempts, cfg.ReconnectDelay)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}

	t.Setenv("CHAT_WS_URL", "wss://rt.example.com")
	cfg, err = LoadClient()
	if err != nil {
		t.Fatalf("LoadClient failed: %v", err)
	}
	if cfg.RealtimeURL() != "wss://rt.example.com" {
		t.Errorf("RealtimeURL = %q", cfg.RealtimeURL())
	}
}

func TestLoadClientRejectsBadURL(t *testing.T) {
	t.Setenv("CHAT_BASE_URL", "ftp://example.com")
	t.Setenv("CHAT_STATE_PATH", t.TempDir()+"/state.db")

	if _, err := LoadClient(); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
