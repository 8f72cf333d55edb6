// Package bootstrap wires configuration, infrastructure and services into a
// running portal process.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/fieldops/installer-portal/config"
)

// logLevel is shared by every logger InitLogger hands out so the level can be
// raised or lowered once configuration is known.
var logLevel = new(slog.LevelVar)

// InitLogger initializes the structured logger at info level.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// SetLogLevel applies a configured level name. Unknown names leave the level unchanged.
func SetLogLevel(name string) bool {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return false
	}
	logLevel.Set(lvl)
	return true
}

// LoadEnv parses and sanitizes configuration without validating the auth
// mode. Maintenance tools that never talk to the identity provider use it.
func LoadEnv() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// LoadConfig loads and validates configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	cfg, err := LoadEnv()
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
