package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/fieldops/installer-portal/config"
	"github.com/fieldops/installer-portal/internal/adapters/devauth"
	"github.com/fieldops/installer-portal/internal/adapters/oidc"
	"github.com/fieldops/installer-portal/internal/adapters/supabase"
	"github.com/fieldops/installer-portal/internal/domain/session"
	"github.com/fieldops/installer-portal/internal/ports"
)

// codeFlowLoginPath starts a server-driven login. It lives under /api so the
// session gate lets anonymous browsers through.
const codeFlowLoginPath = "/api/auth/login"

// AuthProviders is the provider wiring for one auth mode.
type AuthProviders struct {
	// Tokens validates and refreshes access tokens.
	Tokens ports.IdentityProvider
	// CodeFlow is nil when the provider owns the login screen.
	CodeFlow ports.AuthProvider
	// SignInURL is the login button target.
	SignInURL string
	// CallbackURL is the absolute /auth/callback URL.
	CallbackURL string
}

// AuthConfig contains configuration for provider selection.
type AuthConfig struct {
	Auth   config.AuthConfig
	HTTP   config.HTTPConfig
	Logger *slog.Logger
}

// BuildAuthProviders creates the identity provider for the configured auth mode.
func BuildAuthProviders(cfg AuthConfig) (AuthProviders, error) {
	callback := cfg.HTTP.BaseURL + session.PathCallback

	var (
		providers AuthProviders
		err       error
	)
	switch cfg.Auth.Mode {
	case config.AuthModeSupabase:
		providers, err = buildSupabaseProviders(cfg.Auth.Supabase, callback)
	case config.AuthModeOIDC:
		providers, err = buildOIDCProviders(cfg.Auth.OAuth, callback)
	case config.AuthModeMock:
		providers, err = buildDevAuthProviders(cfg.Auth.DevAuth, callback)
	default:
		return AuthProviders{}, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
	if err != nil {
		return AuthProviders{}, err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("auth provider configured",
			"mode", cfg.Auth.Mode,
			"code_flow", providers.CodeFlow != nil,
			"callback_url", providers.CallbackURL,
		)
	}
	return providers, nil
}

func buildSupabaseProviders(cfg config.SupabaseConfig, callback string) (AuthProviders, error) {
	client, err := supabase.NewClient(supabase.Config{
		URL:       cfg.URL,
		AnonKey:   cfg.AnonKey,
		JWTSecret: cfg.JWTSecret,
	})
	if err != nil {
		return AuthProviders{}, fmt.Errorf("supabase client: %w", err)
	}
	return AuthProviders{
		Tokens:      client,
		SignInURL:   client.SignInURL(callback),
		CallbackURL: callback,
	}, nil
}

func buildOIDCProviders(cfg config.OAuthConfig, callback string) (AuthProviders, error) {
	// An explicit redirect wins so it can match what the provider has registered.
	if cfg.RedirectURL != "" {
		callback = cfg.RedirectURL
	}
	prov, err := oidc.NewProvider(oidc.ProviderConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  callback,
		Scope:        cfg.Scope,
		DiscoveryURL: cfg.DiscoveryURL,
		SubjectClaim: cfg.SubjectClaim,
	})
	if err != nil {
		return AuthProviders{}, fmt.Errorf("oidc provider: %w", err)
	}
	return AuthProviders{
		Tokens:      prov,
		CodeFlow:    prov,
		SignInURL:   codeFlowLoginPath,
		CallbackURL: callback,
	}, nil
}

func buildDevAuthProviders(cfg config.DevAuthConfig, callback string) (AuthProviders, error) {
	prov, err := devauth.NewProvider(devauth.Config{
		UserID: cfg.UserID,
		Email:  cfg.Email,
	})
	if err != nil {
		return AuthProviders{}, fmt.Errorf("dev auth provider: %w", err)
	}
	return AuthProviders{
		Tokens:      prov,
		CodeFlow:    prov,
		SignInURL:   codeFlowLoginPath,
		CallbackURL: callback,
	}, nil
}
