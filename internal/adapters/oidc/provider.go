// Package oidc provides OIDC/OAuth authentication adapters for the installer portal.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/ports"
)

var (
	_ ports.AuthProvider     = (*Provider)(nil)
	_ ports.IdentityProvider = (*Provider)(nil)
)

// Provider implements the code flow and token validation against an OIDC provider.
type Provider struct {
	config       *oauth2.Config
	httpClient   *http.Client
	subjectClaim string

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	// SubjectClaim is a JMESPath expression selecting the user id from the
	// verified claims. Defaults to "sub".
	SubjectClaim string
	HTTPClient   *http.Client // Optional, defaults to a client with a 30s timeout
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider creates a new OIDC provider. It performs a single discovery fetch.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	subjectClaim := strings.TrimSpace(config.SubjectClaim)
	if subjectClaim == "" {
		subjectClaim = "sub"
	}
	if _, err := jmespath.Compile(subjectClaim); err != nil {
		return nil, fmt.Errorf("invalid subject claim expression %q: %w", subjectClaim, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		httpClient:   httpClient,
		subjectClaim: subjectClaim,
	}

	ctx := p.clientContext(context.Background())
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(config.Scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}

	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri comes from the configured RedirectURL and must match it exactly.
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
		oauth2.AccessTypeOffline,
	)

	return authURL, state, nonce, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.TokenPair, error) {
	if in.Code == "" {
		return domainauth.TokenPair{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.TokenPair{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.TokenPair{}, errors.New("nonce is required")
	}

	token, err := p.config.Exchange(p.clientContext(ctx), in.Code)
	if err != nil {
		return domainauth.TokenPair{}, fmt.Errorf("exchange code for token: %w", err)
	}

	subject, err := p.subjectFromToken(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.TokenPair{}, fmt.Errorf("extract id_token: %w", err)
	}
	if subject.UserID == "" {
		if subject, err = p.GetUser(ctx, token.AccessToken); err != nil {
			return domainauth.TokenPair{}, fmt.Errorf("get user info: %w", err)
		}
	}

	return toTokenPair(token, subject), nil
}

// GetUser validates an access token by presenting it to the userinfo endpoint.
func (p *Provider) GetUser(ctx context.Context, accessToken string) (domainauth.Subject, error) {
	if accessToken == "" {
		return domainauth.Subject{}, errors.New("access token is required")
	}
	ui, err := p.oidcProvider.UserInfo(p.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return domainauth.Subject{}, fmt.Errorf("fetch user info: %w", err)
	}
	var claims map[string]any
	if claimsErr := ui.Claims(&claims); claimsErr != nil {
		return domainauth.Subject{}, fmt.Errorf("decode user info: %w", claimsErr)
	}
	id, err := p.extractSubject(claims)
	if err != nil {
		return domainauth.Subject{}, err
	}
	return domainauth.Subject{UserID: id, Email: firstNonEmpty(ui.Email, stringClaim(claims, "email"))}, nil
}

// Refresh redeems a refresh token at the token endpoint.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	if refreshToken == "" {
		return domainauth.TokenPair{}, errors.New("refresh token is required")
	}

	// An expired token forces the source to hit the token endpoint.
	stale := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	token, err := p.config.TokenSource(p.clientContext(ctx), stale).Token()
	if err != nil {
		return domainauth.TokenPair{}, fmt.Errorf("refresh token: %w", err)
	}

	// Refresh responses carry no nonce; a missing id_token leaves the
	// subject empty so the caller revalidates the new access token.
	subject, err := p.subjectFromToken(ctx, token, "")
	if err != nil {
		return domainauth.TokenPair{}, fmt.Errorf("verify refreshed id_token: %w", err)
	}
	return toTokenPair(token, subject), nil
}

func toTokenPair(token *oauth2.Token, subject domainauth.Subject) domainauth.TokenPair {
	return domainauth.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Subject:      subject,
		ExpiresAt:    token.Expiry,
	}
}

// subjectFromToken verifies the id_token in tok, if any, and extracts the subject.
// With expectedNonce set the id_token is mandatory once openid was requested.
func (p *Provider) subjectFromToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (domainauth.Subject, error) {
	if !p.hasOpenIDScope() {
		return domainauth.Subject{}, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		if expectedNonce == "" {
			return domainauth.Subject{}, nil
		}
		return domainauth.Subject{}, err
	}
	idTok, err := p.verifier.Verify(p.clientContext(ctx), rawID)
	if err != nil {
		return domainauth.Subject{}, fmt.Errorf("verify id_token: %w", err)
	}
	if expectedNonce != "" && idTok.Nonce != expectedNonce {
		return domainauth.Subject{}, errors.New("invalid nonce")
	}
	var claims map[string]any
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return domainauth.Subject{}, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	id, err := p.extractSubject(claims)
	if err != nil {
		return domainauth.Subject{}, err
	}
	return domainauth.Subject{UserID: id, Email: stringClaim(claims, "email")}, nil
}

// extractSubject evaluates the subject expression against claims.
func (p *Provider) extractSubject(claims map[string]any) (string, error) {
	v, err := jmespath.Search(p.subjectClaim, claims)
	if err != nil {
		return "", fmt.Errorf("evaluate subject claim %q: %w", p.subjectClaim, err)
	}
	switch id := v.(type) {
	case string:
		if id != "" {
			return id, nil
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("subject claim %q is missing or not a string", p.subjectClaim)
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	// Compute number of random bytes needed to produce at least 'length' base64 URL-safe chars
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}

// hasOpenIDScope reports whether the configured scopes include "openid".
func (p *Provider) hasOpenIDScope() bool {
	for _, sc := range p.config.Scopes {
		if sc == "openid" {
			return true
		}
	}
	return false
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
