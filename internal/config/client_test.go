package config

import (
	"testing"
	"time"
)

func setClientEnv(t *testing.T) {
	t.Helper()
	t.Setenv("API_URL", "https://api.example.com")
	t.Setenv("SOCKET_URL", "wss://ws.example.com")
}

func TestLoadClientDefaults(t *testing.T) {
	setClientEnv(t)

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.ReconnectDelay != 5*time.Second {
		t.Fatalf("ReconnectDelay = %v, want 5s", cfg.ReconnectDelay)
	}
	if cfg.MaxReconnectAttempts != 1000 {
		t.Fatalf("MaxReconnectAttempts = %d, want 1000", cfg.MaxReconnectAttempts)
	}
	if cfg.BalancePollInterval != 10*time.Second {
		t.Fatalf("BalancePollInterval = %v, want 10s", cfg.BalancePollInterval)
	}
	if cfg.OperatorID != "BOUGEE" || cfg.LobbyType != "LIVE:VIRTUAL" {
		t.Fatalf("unexpected casino defaults: %+v", cfg)
	}
}

func TestLoadClientRequiresURLs(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("SOCKET_URL", "wss://ws.example.com")

	if _, err := LoadClient(); err == nil {
		t.Fatal("LoadClient() expected error, got nil")
	}
}

func TestLoadClientParseTypes(t *testing.T) {
	setClientEnv(t)
	t.Setenv("WS_RECONNECT_DELAY", "250ms")
	t.Setenv("WS_MAX_RECONNECT_ATTEMPTS", "3")
	t.Setenv("HTTP_TIMEOUT", "2s")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.ReconnectDelay != 250*time.Millisecond {
		t.Fatalf("ReconnectDelay = %v", cfg.ReconnectDelay)
	}
	if cfg.MaxReconnectAttempts != 3 {
		t.Fatalf("MaxReconnectAttempts = %d", cfg.MaxReconnectAttempts)
	}
	if cfg.HTTPTimeout != 2*time.Second {
		t.Fatalf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
}
