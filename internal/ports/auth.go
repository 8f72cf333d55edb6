// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/model"
)

// IdentityProvider validates and refreshes tokens against the external IdP.
type IdentityProvider interface {
	// GetUser validates an access token and returns the subject it was issued for.
	GetUser(ctx context.Context, accessToken string) (domainauth.Subject, error)

	// Refresh exchanges a refresh token for a new token pair.
	Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error)
}

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// AuthProvider initiates and completes a browser code flow against an IdP.
// Only providers that own their login screen (oidc, mock) implement it.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and returns the issued tokens.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.TokenPair, error)
}

// ErrIdentityNotFound is matched by UserStore errors for subjects with no
// identity record. Any other error is an infrastructure fault.
var ErrIdentityNotFound = errors.New("identity not found")

// UserStore reads identity records keyed by the provider subject id.
type UserStore interface {
	GetByID(ctx context.Context, id string) (domainauth.Identity, error)
}

// CookieOptions carries the per-cookie attributes the session core decides.
// Path, HttpOnly, SameSite and Secure are fixed by the transport adapter.
type CookieOptions struct {
	MaxAge time.Duration
}

// CookieStore abstracts the request/response cookie pair for one request.
// Reads see the incoming request; writes go to the outgoing response.
type CookieStore interface {
	Get(name string) (string, bool)
	Set(name, value string, opts CookieOptions)
	Delete(name string)
}

// PushSubscriptionStore persists Web Push subscriptions.
type PushSubscriptionStore interface {
	// Upsert inserts or replaces the subscription identified by (user_id, endpoint).
	Upsert(ctx context.Context, sub model.PushSubscription) (model.PushSubscription, error)
	// Delete removes the subscription identified by (userID, endpoint).
	Delete(ctx context.Context, userID, endpoint string) error
}
