package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/ports"
)

// Resolver turns a token pair into an identity.
type Resolver interface {
	Resolve(ctx context.Context, accessToken, refreshToken string) (Resolution, error)
}

// Resolution is a successful resolver outcome. Refreshed is non-nil when the
// access token was rejected and a refresh produced a new pair; the caller
// decides whether to persist it.
type Resolution struct {
	Identity  domainauth.Identity
	Refreshed *domainauth.TokenPair
}

// TokenResolverOptions groups dependencies for TokenResolver.
type TokenResolverOptions struct {
	Provider ports.IdentityProvider // Required
	Users    ports.UserStore        // Required
	Logger   *slog.Logger           // Optional
}

// TokenResolver validates access tokens with the identity provider, performs
// at most one refresh, and loads the identity record.
type TokenResolver struct {
	provider ports.IdentityProvider
	users    ports.UserStore
	logger   *slog.Logger
}

var _ Resolver = (*TokenResolver)(nil)

// errRefreshReentered signals a broken state machine, never a client problem.
var errRefreshReentered = errors.New("token resolver: refresh state entered twice")

// NewTokenResolver constructs a TokenResolver.
func NewTokenResolver(opts TokenResolverOptions) *TokenResolver {
	if opts.Provider == nil {
		panic("TokenResolver requires an IdentityProvider")
	}
	if opts.Users == nil {
		panic("TokenResolver requires a UserStore")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenResolver{
		provider: opts.Provider,
		users:    opts.Users,
		logger:   logger.With("component", "token_resolver"),
	}
}

type resolveState int

const (
	stateValidating resolveState = iota
	stateRefreshing
	stateRevalidating
	stateLookingUp
	stateDone
)

func (s resolveState) String() string {
	switch s {
	case stateValidating:
		return "validating"
	case stateRefreshing:
		return "refreshing"
	case stateRevalidating:
		return "revalidating"
	case stateLookingUp:
		return "looking_up"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// resolveRun holds the state of one Resolve call.
type resolveRun struct {
	state        resolveState
	accessToken  string
	refreshToken string

	refreshAttempted bool
	subject          domainauth.Subject
	refreshed        *domainauth.TokenPair
	identity         domainauth.Identity
	err              error
}

func (r *resolveRun) fail(err error) {
	r.err = err
	r.state = stateDone
}

// Resolve runs the resolver state machine:
// Validating -> LookingUp -> Done on a valid access token, or
// Validating -> Refreshing -> Revalidating -> LookingUp -> Done after one refresh.
func (t *TokenResolver) Resolve(ctx context.Context, accessToken, refreshToken string) (Resolution, error) {
	if accessToken == "" {
		return Resolution{}, domainauth.ErrNoSession
	}

	run := &resolveRun{state: stateValidating, accessToken: accessToken, refreshToken: refreshToken}
	for run.state != stateDone {
		t.step(ctx, run)
	}
	if run.err != nil {
		return Resolution{}, run.err
	}
	return Resolution{Identity: run.identity, Refreshed: run.refreshed}, nil
}

func (t *TokenResolver) step(ctx context.Context, run *resolveRun) {
	switch run.state {
	case stateValidating:
		t.validate(ctx, run)
	case stateRefreshing:
		t.refresh(ctx, run)
	case stateRevalidating:
		t.revalidate(ctx, run)
	case stateLookingUp:
		t.lookup(ctx, run)
	default:
		run.fail(fmt.Errorf("token resolver: unexpected state %s", run.state))
	}
}

func (t *TokenResolver) validate(ctx context.Context, run *resolveRun) {
	subject, err := t.provider.GetUser(ctx, run.accessToken)
	if err == nil && subject.UserID != "" {
		run.subject = subject
		run.state = stateLookingUp
		return
	}
	if err == nil {
		err = errors.New("provider returned no subject")
	}
	if run.refreshToken == "" {
		run.fail(domainauth.NewFailure(domainauth.FailureInvalidSession, err))
		return
	}
	t.logger.DebugContext(ctx, "access token rejected, attempting refresh", "error", err)
	run.state = stateRefreshing
}

func (t *TokenResolver) refresh(ctx context.Context, run *resolveRun) {
	if run.refreshAttempted {
		run.fail(errRefreshReentered)
		return
	}
	run.refreshAttempted = true

	pair, err := t.provider.Refresh(ctx, run.refreshToken)
	if err != nil {
		run.fail(domainauth.NewFailure(domainauth.FailureSessionExpired, err))
		return
	}
	if pair.AccessToken == "" {
		run.fail(domainauth.NewFailure(domainauth.FailureSessionExpired, errors.New("refresh returned no access token")))
		return
	}
	if pair.RefreshToken == "" {
		// Providers that do not rotate refresh tokens keep the old one valid.
		pair.RefreshToken = run.refreshToken
	}
	run.refreshed = &pair
	run.state = stateRevalidating
}

// revalidate establishes the subject of the refreshed pair. Providers that
// report the user alongside the new tokens skip the extra round trip.
func (t *TokenResolver) revalidate(ctx context.Context, run *resolveRun) {
	if run.refreshed.Subject.UserID != "" {
		run.subject = run.refreshed.Subject
		run.state = stateLookingUp
		return
	}
	subject, err := t.provider.GetUser(ctx, run.refreshed.AccessToken)
	if err != nil || subject.UserID == "" {
		if err == nil {
			err = errors.New("provider returned no subject")
		}
		run.fail(domainauth.NewFailure(domainauth.FailureSessionExpired, err))
		return
	}
	run.subject = subject
	run.state = stateLookingUp
}

func (t *TokenResolver) lookup(ctx context.Context, run *resolveRun) {
	identity, err := t.users.GetByID(ctx, run.subject.UserID)
	if errors.Is(err, ports.ErrIdentityNotFound) {
		run.fail(domainauth.NewFailure(domainauth.FailureUserNotFound, err))
		return
	}
	if err != nil {
		// Store outages go to the error screen, not back to /login.
		run.fail(fmt.Errorf("load identity: %w", err))
		return
	}
	run.identity = identity
	run.state = stateDone
}
