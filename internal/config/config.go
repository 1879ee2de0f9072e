package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Client configures the terminal client. Both the HTTP API and the push
// channel are derived from BaseURL.
type Client struct {
	BaseURL        string        `env:"QWIKCHAT_BASE_URL" envDefault:"http://localhost:8080"`
	Phone          string        `env:"QWIKCHAT_PHONE"`
	Username       string        `env:"QWIKCHAT_USERNAME"`
	DialTimeout    time.Duration `env:"QWIKCHAT_DIAL_TIMEOUT" envDefault:"10s"`
	RequestTimeout time.Duration `env:"QWIKCHAT_REQUEST_TIMEOUT" envDefault:"10s"`
}

// HTTPURL is the base address of the HTTP API without a trailing slash.
func (c Client) HTTPURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}

// ChannelURL derives the push channel address from BaseURL: same host,
// ws/wss scheme, /ws path.
func (c Client) ChannelURL() (string, error) {
	u, err := url.Parse(c.HTTPURL())
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Relay configures the relay server.
type Relay struct {
	Port             string `env:"PORT" envDefault:"8080"`
	DatabaseURL      string `env:"DATABASE_URL"`
	PostgresHost     string `env:"POSTGRES_HOST"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"chatdb"`
	HistoryLimit     int    `env:"HISTORY_LIMIT" envDefault:"200"`
}

// ConnString returns DATABASE_URL, or a DSN assembled from the POSTGRES_*
// parts. Empty means no database is configured.
func (r Relay) ConnString() string {
	if r.DatabaseURL != "" {
		return r.DatabaseURL
	}
	if r.PostgresHost == "" {
		return ""
	}
	return "postgres://" + r.PostgresUser + ":" + r.PostgresPassword + "@" +
		r.PostgresHost + ":" + r.PostgresPort + "/" + r.PostgresDB + "?sslmode=disable"
}

// Load reads .env when present and parses the environment into target.
func Load(target any) error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return ParseEnv(target)
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
