package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	env "github.com/caarlos0/env/v7"
	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the SDK and the CLI.
type Config struct {
	APIBaseURL        string        `env:"NOVACORE_API_URL" envDefault:"https://api.novacore.dev"`
	StreamURL         string        `env:"NOVACORE_STREAM_URL"`
	CredentialsFile   string        `env:"NOVACORE_CREDENTIALS_FILE"`
	LogLevel          string        `env:"NOVACORE_LOG_LEVEL" envDefault:"info"`
	HTTPTimeout       time.Duration `env:"NOVACORE_HTTP_TIMEOUT" envDefault:"10s"`
	ReconnectMin      time.Duration `env:"NOVACORE_RECONNECT_MIN" envDefault:"5s"`
	ReconnectMax      time.Duration `env:"NOVACORE_RECONNECT_MAX" envDefault:"1m"`
	ReconcileInterval time.Duration `env:"NOVACORE_RECONCILE_INTERVAL" envDefault:"2m"`
}

// New loads configuration from the optional .env file at envPath and the
// process environment. Derived defaults are filled in for unset values.
func New(envPath string) (Config, error) {
	var c Config

	if envPath != "" {
		err := godotenv.Load(envPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}

	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.StreamURL == "" {
		c.StreamURL = c.APIBaseURL + "/v1/notifications/stream"
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = defaultCredentialsFile()
	}
	return c, nil
}

func defaultCredentialsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".novacore-credentials.json"
	}
	return filepath.Join(home, ".novacore", "credentials.json")
}
