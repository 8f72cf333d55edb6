package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// AuthMode represents the identity provider the application talks to.
type AuthMode string

const (
	// AuthModeSupabase uses the hosted auth REST API (GoTrue).
	AuthModeSupabase AuthMode = "supabase"
	// AuthModeOIDC uses a generic OIDC/OAuth2 provider.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "supabase", "oidc", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: supabase, oidc, mock)", v)
	}
}

// SupabaseConfig contains settings for the hosted auth REST API.
type SupabaseConfig struct {
	URL     string `env:"URL"`
	AnonKey string `env:"ANON_KEY"`
	// JWTSecret enables local HS256 verification of access tokens, skipping
	// the round trip to the user endpoint. Refresh always goes to the API.
	JWTSecret string `env:"JWT_SECRET"`
}

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email offline_access"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// SubjectClaim is a JMESPath expression selecting the user id in the
	// verified token claims.
	SubjectClaim string `env:"SUBJECT_CLAIM" envDefault:"sub"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID string `env:"USER_ID" envDefault:"00000000-0000-0000-0000-000000000001"`
	Email  string `env:"EMAIL"   envDefault:"dev@example.com"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"supabase"`

	// Supabase configuration (used when Mode=supabase).
	Supabase SupabaseConfig `envPrefix:"SUPABASE_"`

	// OAuth configuration (used when Mode=oidc).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims provider URLs.
func (a *AuthConfig) Sanitize() {
	a.Supabase.URL = strings.TrimRight(strings.TrimSpace(a.Supabase.URL), "/")
	a.OAuth.SubjectClaim = strings.TrimSpace(a.OAuth.SubjectClaim)
	if a.OAuth.SubjectClaim == "" {
		a.OAuth.SubjectClaim = "sub"
	}
}

// Validate checks that the selected mode has the settings it needs.
func (a *AuthConfig) Validate() error {
	switch a.Mode {
	case AuthModeSupabase:
		if a.Supabase.URL == "" {
			return errors.New("SUPABASE_URL is not defined in environment variables")
		}
		if a.Supabase.AnonKey == "" {
			return errors.New("SUPABASE_ANON_KEY is not defined in environment variables")
		}
		if u, err := url.Parse(a.Supabase.URL); err != nil || !u.IsAbs() {
			return errors.New("SUPABASE_URL is not a valid URL")
		}
	case AuthModeOIDC:
		if a.OAuth.DiscoveryURL == "" || a.OAuth.ClientID == "" {
			return errors.New("AUTH_MODE=oidc requires OAUTH_DISCOVERY_URL and OAUTH_CLIENT_ID")
		}
	case AuthModeMock:
		if a.DevAuth.UserID == "" {
			return errors.New("AUTH_MODE=mock requires DEV_AUTH_USER_ID")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q", a.Mode)
	}
	return nil
}
