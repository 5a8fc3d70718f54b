// Package config handles resolving configuration.
package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
)

// Config is the runtime configuration, resolved from the environment. Every
// field has a usable default except none; the zero environment yields a
// working single-user dev setup.
type Config struct {
	// WebAddress is the listen address for the web application.
	WebAddress string `env:"CASEVIEW_WEB_ADDRESS" envDefault:"localhost:9999"`
	// DBFilepath locates the SQLite database file. Defaults to the XDG data
	// directory when unset.
	DBFilepath string `env:"CASEVIEW_DB_FILEPATH"`
	// SessionTTL is the lifetime of a plain login session.
	SessionTTL time.Duration `env:"CASEVIEW_SESSION_TTL" envDefault:"12h"`
	// RememberTTL is the lifetime of a session created with "remember me".
	RememberTTL time.Duration `env:"CASEVIEW_REMEMBER_TTL" envDefault:"720h"`
	// LogLevel sets the minimum slog level (DEBUG, INFO, WARN, ERROR).
	LogLevel slog.Level `env:"CASEVIEW_LOG_LEVEL" envDefault:"INFO"`
	// DevMode enables verbose request logging and source locations in logs.
	DevMode bool `env:"CASEVIEW_DEV_MODE"`
}

// Load resolves the configuration from the environment, applying defaults and
// validating the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.DBFilepath == "" {
		cfg.DBFilepath = filepath.Join(xdg.DataHome, "caseview", "db.sqlite")
	}
	if cfg.SessionTTL <= 0 || cfg.RememberTTL <= 0 {
		return cfg, fmt.Errorf("session TTLs must be positive")
	}
	if cfg.WebAddress == "" {
		return cfg, fmt.Errorf("web address must not be empty")
	}
	return cfg, nil
}
