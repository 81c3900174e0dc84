// Package config loads branchlog settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds environment-derived settings. CLI flags override them.
type Config struct {
	DB        string `env:"BRANCHLOG_DB"`
	Backend   string `env:"BRANCHLOG_BACKEND"    envDefault:"sqlite"  validate:"oneof=sqlite badger"`
	Log       string `env:"BRANCHLOG_LOG"        envDefault:"default" validate:"excludes=/"`
	LogLevel  string `env:"BRANCHLOG_LOG_LEVEL"  envDefault:"warn"`
	LogFormat string `env:"BRANCHLOG_LOG_FORMAT" envDefault:"text"    validate:"oneof=text json"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown backends and log formats, and log names that
// cannot be stored.
func (c Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "oneof":
		return fmt.Errorf("unknown %s %q (use %s)", fieldLabel(fe.Field()), fe.Value(),
			strings.ReplaceAll(fe.Param(), " ", " or "))
	default:
		return fmt.Errorf("invalid %s %q", fieldLabel(fe.Field()), fe.Value())
	}
}

func fieldLabel(field string) string {
	switch field {
	case "LogFormat":
		return "log format"
	case "Log":
		return "log name"
	}
	return strings.ToLower(field)
}

// DBPath returns the configured database location, or the per-backend
// default under ~/.branchlog.
func (c Config) DBPath() string {
	if c.DB != "" {
		return c.DB
	}
	home, _ := os.UserHomeDir()
	if c.Backend == "badger" {
		return filepath.Join(home, ".branchlog", "badger")
	}
	return filepath.Join(home, ".branchlog", "branchlog.db")
}
