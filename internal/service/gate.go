package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/session"
	"github.com/fieldops/installer-portal/internal/ports"
)

// PathClass tells the gate how much work a request path needs.
type PathClass int

const (
	// PathProtected requires a resolved, unexpired session.
	PathProtected PathClass = iota
	// PathPublic serves login and auth endpoints.
	PathPublic
	// PathPassthrough covers framework internals, static files and API routes.
	PathPassthrough
)

var publicPaths = map[string]struct{}{
	session.PathLogin:    {},
	session.PathCallback: {},
	session.PathLogout:   {},
}

// ClassifyPath maps a request path to its PathClass. Public paths match
// exactly; passthrough paths start with "/_" or "/api", or contain a dot.
func ClassifyPath(path string) PathClass {
	if _, ok := publicPaths[path]; ok {
		return PathPublic
	}
	if strings.HasPrefix(path, "/_") || strings.HasPrefix(path, "/api") || strings.Contains(path, ".") {
		return PathPassthrough
	}
	return PathProtected
}

// Outcome is the gate verdict for one request.
type Outcome string

const (
	OutcomeSkip     Outcome = "skip"
	OutcomeAllow    Outcome = "allow"
	OutcomeRedirect Outcome = "redirect"
)

// Decision is the result of Evaluate.
type Decision struct {
	Outcome Outcome
	// Identity is set when Outcome is OutcomeAllow.
	Identity domainauth.Identity
	// Location is set when Outcome is OutcomeRedirect.
	Location string
	// Failure explains a redirect; empty for the role home redirect and for fatal errors.
	Failure domainauth.FailureKind
}

// Allowed reports whether the request may continue with an identity attached.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// GateMetrics receives gate outcomes. Implementations must be safe for concurrent use.
type GateMetrics interface {
	RecordDecision(outcome, reason string)
	RecordRefresh(result string)
}

// Refresh results reported to GateMetrics.
const (
	RefreshSucceeded = "success"
	RefreshDeclined  = "declined"
)

// SessionClockConfig groups the session clock inputs.
type SessionClockConfig struct {
	Timeouts session.Timeouts
	Clock    ports.Clock
}

// GateObservability groups optional observability hooks.
type GateObservability struct {
	Logger  *slog.Logger
	Metrics GateMetrics
}

// RequestGateOptions groups dependencies for RequestGate.
type RequestGateOptions struct {
	Resolver      Resolver           // Required
	Session       SessionClockConfig // Required: Clock must be set
	Observability GateObservability  // Optional
}

// RequestGate decides per request whether to allow, redirect or skip, and
// applies the resulting session-state mutations to the cookie store.
type RequestGate struct {
	resolver Resolver
	timeouts session.Timeouts
	clock    ports.Clock
	logger   *slog.Logger
	metrics  GateMetrics
}

// NewRequestGate constructs a RequestGate.
func NewRequestGate(opts RequestGateOptions) *RequestGate {
	if opts.Resolver == nil {
		panic("RequestGate requires a Resolver")
	}
	if opts.Session.Clock == nil {
		panic("RequestGate requires a Clock")
	}
	logger := opts.Observability.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestGate{
		resolver: opts.Resolver,
		timeouts: opts.Session.Timeouts,
		clock:    opts.Session.Clock,
		logger:   logger.With("component", "request_gate"),
		metrics:  opts.Observability.Metrics,
	}
}

// Evaluate runs the gate for one request. It never panics and never returns
// an error: every failure becomes a redirect.
func (g *RequestGate) Evaluate(ctx context.Context, path string, cookies ports.CookieStore) (d Decision) {
	if ClassifyPath(path) != PathProtected {
		return Decision{Outcome: OutcomeSkip}
	}

	defer func() {
		if rec := recover(); rec != nil {
			d = g.fatal(ctx, path, panicMessage(rec))
		}
		g.record(d)
	}()

	return g.evaluate(ctx, path, cookies)
}

func (g *RequestGate) evaluate(ctx context.Context, path string, cookies ports.CookieStore) Decision {
	access, _ := cookies.Get(session.CookieAccessToken)
	refresh, _ := cookies.Get(session.CookieRefreshToken)

	res, err := g.resolver.Resolve(ctx, access, refresh)
	if err != nil {
		kind := domainauth.KindOf(err)
		if kind == "" {
			return g.fatal(ctx, path, err.Error())
		}
		if kind == domainauth.FailureSessionExpired {
			g.recordRefresh(RefreshDeclined)
		}
		g.logger.DebugContext(ctx, "session rejected", "path", path, "kind", kind, "error", err)
		return redirect(session.LoginURL(session.ReasonFor(kind)), kind)
	}

	identity := res.Identity
	now := g.clock.Now()

	createdAt, hasCreated := readTimestamp(cookies, session.CookieSessionCreated)
	lastActivityAt, hasLast := readTimestamp(cookies, session.CookieLastActivity)

	if !hasCreated || !hasLast {
		g.logger.InfoContext(ctx, "session clock bootstrapped",
			"user_id", identity.ID, "had_created", hasCreated, "had_last_activity", hasLast)
		writeTimestamp(cookies, session.CookieSessionCreated, now)
		writeTimestamp(cookies, session.CookieLastActivity, now)
	} else {
		state := session.Evaluate(session.Input{
			Now:            now,
			CreatedAt:      createdAt,
			LastActivityAt: lastActivityAt,
			Timeouts:       g.timeouts,
		})
		if state.TimedOut() {
			kind := state.Failure()
			ClearSessionCookies(cookies)
			g.logger.InfoContext(ctx, "session timed out",
				"user_id", identity.ID, "kind", kind,
				"expired", state.IsExpired, "inactive", state.IsInactive)
			return redirect(session.LoginURL(session.ReasonFor(kind)), kind)
		}
		writeTimestamp(cookies, session.CookieLastActivity, now)
	}

	if res.Refreshed != nil {
		StoreTokenPair(cookies, *res.Refreshed)
		g.recordRefresh(RefreshSucceeded)
	}

	return roleGate(path, identity)
}

// roleGate keeps each role inside its own area and routes "/" to the role home.
func roleGate(path string, identity domainauth.Identity) Decision {
	ownsArea := func(prefix string, role domainauth.Role) bool {
		return !strings.HasPrefix(path, prefix) || identity.Role == role
	}

	inRoleArea := path == "/" || strings.HasPrefix(path, session.PathAdmin) || strings.HasPrefix(path, session.PathInstaller)
	if inRoleArea && !identity.Role.Valid() {
		return redirect(session.LoginErrorURL(session.LoginErrorAccessDenied), domainauth.FailureRoleMismatch)
	}
	if !ownsArea(session.PathAdmin, domainauth.RoleAdmin) {
		return redirect(session.PathInstaller, domainauth.FailureRoleMismatch)
	}
	if !ownsArea(session.PathInstaller, domainauth.RoleInstaller) {
		return redirect(session.PathAdmin, domainauth.FailureRoleMismatch)
	}
	if path == "/" {
		return redirect(identity.Role.HomePath(), "")
	}
	return Decision{Outcome: OutcomeAllow, Identity: identity}
}

func (g *RequestGate) fatal(ctx context.Context, path, message string) Decision {
	g.logger.ErrorContext(ctx, "request gate failed", "path", path, "error", message)
	return Decision{Outcome: OutcomeRedirect, Location: session.ErrorURL(message)}
}

func (g *RequestGate) record(d Decision) {
	if g.metrics == nil {
		return
	}
	reason := string(d.Failure)
	if reason == "" && d.Outcome == OutcomeRedirect && strings.HasPrefix(d.Location, session.PathError) {
		reason = "error"
	}
	g.metrics.RecordDecision(string(d.Outcome), reason)
}

func (g *RequestGate) recordRefresh(result string) {
	if g.metrics == nil {
		return
	}
	g.metrics.RecordRefresh(result)
}

func redirect(location string, kind domainauth.FailureKind) Decision {
	return Decision{Outcome: OutcomeRedirect, Location: location, Failure: kind}
}

func panicMessage(rec any) string {
	if err, ok := rec.(error); ok {
		return err.Error()
	}
	if s, ok := rec.(string); ok {
		return s
	}
	return fmt.Sprint(rec)
}

func readTimestamp(cookies ports.CookieStore, name string) (time.Time, bool) {
	raw, ok := cookies.Get(name)
	if !ok {
		return time.Time{}, false
	}
	return session.ParseTimestamp(raw)
}

func writeTimestamp(cookies ports.CookieStore, name string, t time.Time) {
	cookies.Set(name, session.FormatTimestamp(t), ports.CookieOptions{MaxAge: session.TimestampMaxAge})
}

// StoreTokenPair writes the access and refresh cookies for pair.
func StoreTokenPair(cookies ports.CookieStore, pair domainauth.TokenPair) {
	cookies.Set(session.CookieAccessToken, pair.AccessToken, ports.CookieOptions{MaxAge: session.AccessTokenMaxAge})
	cookies.Set(session.CookieRefreshToken, pair.RefreshToken, ports.CookieOptions{MaxAge: session.RefreshTokenMaxAge})
}

// ClearSessionCookies removes all four session cookies.
func ClearSessionCookies(cookies ports.CookieStore) {
	for _, name := range session.AllCookies {
		cookies.Delete(name)
	}
}
