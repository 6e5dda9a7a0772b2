// Package config loads the client configuration from the environment. A .env
// file is read first when present; variables already set in the environment
// win over it.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the client configuration
type Config struct {
	APIURL       string        `env:"FUNCTIONS_API_URL" envDefault:"http://localhost:8080"`
	SessionFile  string        `env:"FUNCTIONS_SESSION_FILE"`
	SessionKey   string        `env:"FUNCTIONS_SESSION_KEY"`
	Timeout      time.Duration `env:"FUNCTIONS_TIMEOUT" envDefault:"15s"`
	LogLevel     string        `env:"FUNCTIONS_LOG_LEVEL" envDefault:"warn"`
	ServerLogout bool          `env:"FUNCTIONS_SERVER_LOGOUT" envDefault:"false"`
}

// Load reads the given dotenv files (".env" when none are given), then parses
// the environment into a Config. Missing dotenv files are ignored. The result
// is not validated, so that callers can apply overrides first and then call
// Validate.
func Load(files ...string) (Config, error) {
	var cfg Config

	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("unable to load dotenv: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse environment: %w", err)
	}

	if cfg.SessionFile == "" {
		path, err := DefaultSessionFile()
		if err != nil {
			return cfg, err
		}

		cfg.SessionFile = path
	}

	return cfg, nil
}

// DefaultSessionFile is the session file used when none is configured
func DefaultSessionFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to find config dir: %w", err)
	}

	return filepath.Join(dir, "functions", "session"), nil
}

// Validate checks the values that cannot be checked by their type alone
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api url %q: must be an absolute http(s) url", c.APIURL)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s: must be positive", c.Timeout)
	}

	if _, err := c.Key(); err != nil {
		return err
	}

	return nil
}

// Key decodes SessionKey. A nil key means a key file should be used instead.
func (c Config) Key() ([]byte, error) {
	if c.SessionKey == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(c.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid session key: %w", err)
	}

	return key, nil
}

// KeyFile is where the session signing key lives when SessionKey is empty
func (c Config) KeyFile() string {
	return c.SessionFile + ".key"
}

// CookieFile is where the backend's session cookie is kept, signed with the
// same key as the session file
func (c Config) CookieFile() string {
	return c.SessionFile + ".cookies"
}
