package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseEnvClientDefaults(t *testing.T) {
	var cfg Client
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Fatalf("expected default base url, got %q", cfg.BaseURL)
	}
	if cfg.DialTimeout != 10*time.Second {
		t.Fatalf("expected default dial timeout, got %v", cfg.DialTimeout)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg Relay
	t.Setenv("HISTORY_LIMIT", "lots")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestChannelURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{base: "http://localhost:8080", want: "ws://localhost:8080/ws"},
		{base: "https://chat.example.com/", want: "wss://chat.example.com/ws"},
		{base: "https://chat.example.com/api", want: "wss://chat.example.com/api/ws"},
		{base: "ftp://chat.example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := Client{BaseURL: tt.base}.ChannelURL()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ChannelURL() expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ChannelURL() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ChannelURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelayConnString(t *testing.T) {
	if got := (Relay{}).ConnString(); got != "" {
		t.Fatalf("expected no database without host, got %q", got)
	}

	r := Relay{
		PostgresHost:     "db",
		PostgresPort:     "5432",
		PostgresUser:     "chat",
		PostgresPassword: "pw",
		PostgresDB:       "chatdb",
	}
	want := "postgres://chat:pw@db:5432/chatdb?sslmode=disable"
	if got := r.ConnString(); got != want {
		t.Fatalf("ConnString() = %q, want %q", got, want)
	}

	r.DatabaseURL = "postgres://override"
	if got := r.ConnString(); got != "postgres://override" {
		t.Fatalf("expected DATABASE_URL to win, got %q", got)
	}
}
