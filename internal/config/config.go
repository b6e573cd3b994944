// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/rcliao/companion-state/internal/model"
)

// Config holds every tunable of the engine.
type Config struct {
	DBPath            string        `env:"COMPANION_DB"`
	WindowSize        int           `env:"COMPANION_WINDOW_SIZE" envDefault:"20"`
	RelevanceLimit    int           `env:"COMPANION_RELEVANCE_LIMIT" envDefault:"5"`
	SeedMinImportance int           `env:"COMPANION_SEED_MIN_IMPORTANCE" envDefault:"4"`
	SearchTimeout     time.Duration `env:"COMPANION_SEARCH_TIMEOUT" envDefault:"2s"`
	LogLevel          string        `env:"COMPANION_LOG_LEVEL" envDefault:"info"`
	PersonalityPath   string        `env:"COMPANION_PERSONALITY"`
}

// Load reads .env files (missing files are fine) and then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, model.Configurationf("load %s: %v", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, model.Configurationf("parse environment: %v", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.PersonalityPath = expandHome(cfg.PersonalityPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return model.Configurationf("database path is empty")
	case c.WindowSize <= 0:
		return model.Configurationf("window size must be positive, got %d", c.WindowSize)
	case c.RelevanceLimit <= 0:
		return model.Configurationf("relevance limit must be positive, got %d", c.RelevanceLimit)
	case c.SeedMinImportance < model.MinImportance || c.SeedMinImportance > model.MaxImportance:
		return model.Configurationf("seed importance %d outside [%d,%d]",
			c.SeedMinImportance, model.MinImportance, model.MaxImportance)
	case c.SearchTimeout <= 0:
		return model.Configurationf("search timeout must be positive, got %s", c.SearchTimeout)
	}
	return nil
}

// DefaultDBPath is ~/.companion-state/state.db.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".companion-state", "state.db")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
