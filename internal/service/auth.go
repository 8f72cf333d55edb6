package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Resolver Resolver               // Required: validates stored token pairs
	Tokens   ports.IdentityProvider // Required: validates bare access tokens
	CodeFlow ports.AuthProvider     // Optional: only oidc and mock modes run a code flow
}

// AuthService orchestrates the login entry points around the token resolver.
type AuthService struct {
	resolver Resolver
	tokens   ports.IdentityProvider
	codeFlow ports.AuthProvider
}

// ErrMissingTokens is returned when a token pair is incomplete.
var ErrMissingTokens = errors.New("missing tokens")

// ErrCodeFlowUnsupported is returned by BeginLogin/CompleteLogin when the
// configured provider owns the login screen itself.
var ErrCodeFlowUnsupported = errors.New("code flow is not supported by the configured provider")

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Resolver == nil {
		panic("AuthService requires a Resolver")
	}
	if opts.Tokens == nil {
		panic("AuthService requires an IdentityProvider")
	}
	return &AuthService{
		resolver: opts.Resolver,
		tokens:   opts.Tokens,
		codeFlow: opts.CodeFlow,
	}
}

// SupportsCodeFlow reports whether BeginLogin can be used.
func (s *AuthService) SupportsCodeFlow() bool { return s.codeFlow != nil }

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin initiates an authentication flow and returns the provider auth URL with state and nonce.
func (s *AuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if s.codeFlow == nil {
		return nil, ErrCodeFlowUnsupported
	}
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	authURL, state, nonce, err := s.codeFlow.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{
		AuthURL: authURL,
		State:   state,
		Nonce:   nonce,
	}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

// LoginResult is the outcome of establishing a session: the identity and
// the token pair to store as cookies.
type LoginResult struct {
	Identity domainauth.Identity
	Tokens   domainauth.TokenPair
}

// CompleteLogin exchanges the authorization code for tokens and resolves the identity they belong to.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (*LoginResult, error) {
	if s.codeFlow == nil {
		return nil, ErrCodeFlowUnsupported
	}
	if input.Code == "" {
		return nil, errors.New("authorization code is required")
	}
	if input.State == "" {
		return nil, errors.New("state parameter is required")
	}
	if input.Nonce == "" {
		return nil, errors.New("nonce parameter is required")
	}

	pair, err := s.codeFlow.Exchange(ctx, ports.ExchangeInput{
		Code:  input.Code,
		State: input.State,
		Nonce: input.Nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	return s.EstablishSession(ctx, pair)
}

// EstablishSession validates a freshly issued token pair and resolves its
// identity. If the resolver had to refresh, the refreshed pair is returned.
func (s *AuthService) EstablishSession(ctx context.Context, pair domainauth.TokenPair) (*LoginResult, error) {
	pair.AccessToken = strings.TrimSpace(pair.AccessToken)
	pair.RefreshToken = strings.TrimSpace(pair.RefreshToken)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, ErrMissingTokens
	}

	res, err := s.resolver.Resolve(ctx, pair.AccessToken, pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	tokens := pair
	if res.Refreshed != nil {
		tokens = *res.Refreshed
	}
	return &LoginResult{Identity: res.Identity, Tokens: tokens}, nil
}

// Authenticate validates a bare access token without refresh or identity
// lookup. API endpoints use it to learn the caller's subject id.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (domainauth.Subject, error) {
	if strings.TrimSpace(accessToken) == "" {
		return domainauth.Subject{}, domainauth.ErrNoSession
	}
	subject, err := s.tokens.GetUser(ctx, accessToken)
	if err != nil {
		return domainauth.Subject{}, domainauth.NewFailure(domainauth.FailureInvalidSession, err)
	}
	if subject.UserID == "" {
		return domainauth.Subject{}, domainauth.ErrInvalidSession
	}
	return subject, nil
}
