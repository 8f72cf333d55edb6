// Package devauth provides a simple, config-driven identity provider for local development.
package devauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/ports"
)

var (
	_ ports.AuthProvider     = (*Provider)(nil)
	_ ports.IdentityProvider = (*Provider)(nil)
)

const (
	accessPrefix  = "dev-access."
	refreshPrefix = "dev-refresh."
)

// Config controls the dev auth provider behavior.
type Config struct {
	UserID          string
	Email           string
	SessionDuration time.Duration // default 8h when zero
}

// Provider implements ports.AuthProvider and ports.IdentityProvider for local development.
// It short-circuits the OAuth flow by redirecting back to our own callback
// with locally generated state and nonce. Tokens are opaque strings
// bound to the configured user; anything else is rejected.
type Provider struct {
	subject         domainauth.Subject
	sessionDuration time.Duration
	now             func() time.Time
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if strings.Contains(cfg.UserID, ".") {
		return nil, errors.New("dev auth: UserID must not contain dots")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	return &Provider{
		subject:         domainauth.Subject{UserID: cfg.UserID, Email: cfg.Email},
		sessionDuration: dur,
		now:             time.Now,
	}, nil
}

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	// Our standard handler expects GET /auth/callback?code=...&state=...
	authURL := "/auth/callback?code=dev&state=" + state
	return authURL, state, nonce, nil
}

// Exchange ignores the provided code/state/nonce (validation handled by handler) and issues dev tokens.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.TokenPair, error) {
	if in.Code == "" {
		return domainauth.TokenPair{}, errors.New("authorization code is required")
	}
	return p.issue()
}

// GetUser accepts access tokens minted by this provider for the configured user.
func (p *Provider) GetUser(_ context.Context, accessToken string) (domainauth.Subject, error) {
	if !p.owns(accessToken, accessPrefix) {
		return domainauth.Subject{}, errors.New("dev auth: unknown access token")
	}
	return p.subject, nil
}

// Refresh accepts refresh tokens minted by this provider and issues a new pair.
func (p *Provider) Refresh(_ context.Context, refreshToken string) (domainauth.TokenPair, error) {
	if !p.owns(refreshToken, refreshPrefix) {
		return domainauth.TokenPair{}, errors.New("dev auth: unknown refresh token")
	}
	return p.issue()
}

func (p *Provider) issue() (domainauth.TokenPair, error) {
	access, err := p.mint(accessPrefix)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	refresh, err := p.mint(refreshPrefix)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	return domainauth.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		Subject:      p.subject,
		ExpiresAt:    p.now().Add(p.sessionDuration),
	}, nil
}

// mint returns prefix + userID + "." + random.
func (p *Provider) mint(prefix string) (string, error) {
	r, err := randomString(16)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return prefix + p.subject.UserID + "." + r, nil
}

func (p *Provider) owns(token, prefix string) bool {
	rest, ok := strings.CutPrefix(token, prefix)
	if !ok {
		return false
	}
	user, random, ok := strings.Cut(rest, ".")
	return ok && random != "" && user == p.subject.UserID
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	// Compute number of random bytes needed to produce at least n base64 URL chars
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		// pad
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}
