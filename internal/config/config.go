// Package config loads runtime configuration from the environment,
// with an optional .env file for development.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything main needs to wire the client together.
type Config struct {
	// BaseURL is the feed service root, e.g. https://feed.example.com.
	// Empty means no remote account: only the local RSS view is
	// available.
	BaseURL string
	// Cookie is the raw Cookie header value for the session. Loaded
	// from PERCH_COOKIE, or from the file at PERCH_COOKIE_FILE.
	Cookie string
	// DBPath is the local annotation database.
	DBPath string
	// OPMLPath is the RSS subscription list; optional.
	OPMLPath string
	// HTTPTimeout bounds every API request.
	HTTPTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present but never required.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BaseURL:     os.Getenv("PERCH_BASE_URL"),
		Cookie:      os.Getenv("PERCH_COOKIE"),
		DBPath:      os.Getenv("PERCH_DB"),
		OPMLPath:    os.Getenv("PERCH_OPML"),
		HTTPTimeout: 15 * time.Second,
	}

	if v := os.Getenv("PERCH_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse PERCH_HTTP_TIMEOUT: %w", err)
		}
		cfg.HTTPTimeout = d
	}

	if cfg.Cookie == "" {
		if path := os.Getenv("PERCH_COOKIE_FILE"); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				return Config{}, fmt.Errorf("read cookie file: %w", err)
			}
			cfg.Cookie = strings.TrimSpace(string(b))
		}
	}

	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}
	return cfg, nil
}

// HasAccount reports whether a remote session is configured.
func (c Config) HasAccount() bool {
	return c.BaseURL != "" && c.Cookie != ""
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "perch.db"
	}
	return filepath.Join(dir, "perch", "perch.db")
}
