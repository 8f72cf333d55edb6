package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Environment names accepted by APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DefaultTimezone is used when APP_TIMEZONE is blank.
const DefaultTimezone = "Europe/Madrid"

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Identity provider configuration
//   - session.go: Session timeout windows
//   - database.go: Database and identity cache configuration
//   - http.go: HTTP server configuration
//   - observability.go: Metrics configuration
type AppConfig struct {
	// Env selects development or production behavior. Cookies are only
	// marked Secure in production.
	Env string `env:"APP_ENV" envDefault:"development"`

	// Timezone is the IANA zone used for "today" and for displayed dates.
	Timezone string `env:"APP_TIMEZONE" envDefault:"Europe/Madrid"`

	// Authentication configuration
	Auth AuthConfig

	// Session timeout configuration
	Session SessionConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	// HTTP server configuration
	HTTP HTTPConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// IsProduction reports whether the application runs in production mode.
func (c *AppConfig) IsProduction() bool {
	return c.Env == EnvProduction
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != EnvProduction {
		c.Env = EnvDevelopment
	}
	c.Timezone = strings.TrimSpace(c.Timezone)
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}

	c.Session.Sanitize()
	c.HTTP.Sanitize()
	c.Cache.Sanitize()
	c.Auth.Sanitize()
	c.Observability.Sanitize()
}

// Validate reports configuration combinations that cannot work at runtime.
func (c *AppConfig) Validate() error {
	var errs []error

	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.Mode == AuthModeMock && c.IsProduction() {
		errs = append(errs, errors.New("AUTH_MODE=mock is not allowed when APP_ENV=production"))
	}
	if err := validateCookieDomain(c.HTTP.CookieDomain); err != nil {
		errs = append(errs, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err))
	}

	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to UTC when it does not load.
// Validate reports the bad value.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// validateCookieDomain rejects cookie domains that browsers would refuse,
// i.e. public suffixes such as "com" or "co.uk".
func validateCookieDomain(domain string) error {
	d := strings.TrimPrefix(strings.TrimSpace(domain), ".")
	if d == "" || d == "localhost" {
		return nil
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(d); err != nil {
		return fmt.Errorf("invalid APP_COOKIE_DOMAIN %q: %w", domain, err)
	}
	return nil
}
