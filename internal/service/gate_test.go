package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/session"
	"github.com/fieldops/installer-portal/internal/mocks"
	authmocks "github.com/fieldops/installer-portal/internal/mocks/auth"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type resolverFunc func(ctx context.Context, accessToken, refreshToken string) (Resolution, error)

func (f resolverFunc) Resolve(ctx context.Context, accessToken, refreshToken string) (Resolution, error) {
	return f(ctx, accessToken, refreshToken)
}

type recordingMetrics struct {
	mu        sync.Mutex
	decisions []string
	refreshes []string
}

func (m *recordingMetrics) RecordDecision(outcome, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, outcome+"/"+reason)
}

func (m *recordingMetrics) RecordRefresh(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes = append(m.refreshes, result)
}

var (
	gateNow          = time.UnixMilli(1_700_000_000_000)
	gateTimeouts     = session.Timeouts{Absolute: 30 * time.Minute, Inactivity: 15 * time.Minute}
	installerProfile = domainauth.Identity{ID: "22222222-2222-2222-2222-222222222222", FullName: "Iván", Role: domainauth.RoleInstaller}
)

func newTestGate(resolver Resolver, metrics GateMetrics) *RequestGate {
	return NewRequestGate(RequestGateOptions{
		Resolver:      resolver,
		Session:       SessionClockConfig{Timeouts: gateTimeouts, Clock: fixedClock{now: gateNow}},
		Observability: GateObservability{Metrics: metrics},
	})
}

func resolvesTo(identity domainauth.Identity) Resolver {
	return resolverFunc(func(context.Context, string, string) (Resolution, error) {
		return Resolution{Identity: identity}, nil
	})
}

func failsWith(err error) Resolver {
	return resolverFunc(func(context.Context, string, string) (Resolution, error) {
		return Resolution{}, err
	})
}

func ago(d time.Duration) string {
	return session.FormatTimestamp(gateNow.Add(-d))
}

func sessionCookies(created, last string) map[string]string {
	c := map[string]string{
		session.CookieAccessToken:  "access",
		session.CookieRefreshToken: "refresh",
	}
	if created != "" {
		c[session.CookieSessionCreated] = created
	}
	if last != "" {
		c[session.CookieLastActivity] = last
	}
	return c
}

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		path string
		want PathClass
	}{
		{"/login", PathPublic},
		{"/auth/callback", PathPublic},
		{"/auth/logout", PathPublic},
		{"/login/extra", PathProtected},
		{"/_astro/chunk", PathPassthrough},
		{"/favicon.ico", PathPassthrough},
		{"/api/push/subscribe", PathPassthrough},
		{"/apiary", PathPassthrough},
		{"/admin", PathProtected},
		{"/installer/jobs", PathProtected},
		{"/", PathProtected},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPath(tt.path))
		})
	}
}

func TestRequestGate_SkipsPublicAndPassthrough(t *testing.T) {
	gate := newTestGate(resolverFunc(func(context.Context, string, string) (Resolution, error) {
		t.Fatal("resolver must not run for unprotected paths")
		return Resolution{}, nil
	}), nil)

	for _, path := range []string{"/login", "/auth/callback", "/auth/logout", "/_next/x", "/style.css", "/api/auth/set-session"} {
		cookies := authmocks.NewMemoryCookieStore(nil)
		d := gate.Evaluate(context.Background(), path, cookies)
		assert.Equal(t, OutcomeSkip, d.Outcome, path)
		assert.Empty(t, d.Identity.ID, path)
		assert.Empty(t, cookies.Writes(), path)
	}
}

func TestRequestGate_ResolverFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantLoc  string
		wantKind domainauth.FailureKind
	}{
		{name: "no session", err: domainauth.ErrNoSession, wantLoc: "/login?reason=unauthorized", wantKind: domainauth.FailureNoSession},
		{name: "invalid session", err: domainauth.NewFailure(domainauth.FailureInvalidSession, errors.New("bad jwt")), wantLoc: "/login?reason=unauthorized", wantKind: domainauth.FailureInvalidSession},
		{name: "user not found", err: domainauth.ErrUserNotFound, wantLoc: "/login?reason=unauthorized", wantKind: domainauth.FailureUserNotFound},
		{name: "session expired", err: domainauth.NewFailure(domainauth.FailureSessionExpired, errors.New("invalid_grant")), wantLoc: "/login?reason=session-expired", wantKind: domainauth.FailureSessionExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := newTestGate(failsWith(tt.err), nil)
			cookies := authmocks.NewMemoryCookieStore(sessionCookies(ago(time.Minute), ago(time.Minute)))

			d := gate.Evaluate(context.Background(), "/installer", cookies)

			assert.Equal(t, OutcomeRedirect, d.Outcome)
			assert.Equal(t, tt.wantLoc, d.Location)
			assert.Equal(t, tt.wantKind, d.Failure)
			assert.Empty(t, cookies.Writes(), "resolver failures must not touch session state")
		})
	}
}

func TestRequestGate_BootstrapsMissingTimestamps(t *testing.T) {
	tests := []struct {
		name    string
		created string
		last    string
	}{
		{name: "both missing"},
		{name: "created missing", last: ago(time.Minute)},
		{name: "last activity missing", created: ago(time.Minute)},
		{name: "malformed values", created: "yesterday", last: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := newTestGate(resolvesTo(installerProfile), nil)
			cookies := authmocks.NewMemoryCookieStore(sessionCookies(tt.created, tt.last))

			d := gate.Evaluate(context.Background(), "/installer", cookies)

			require.True(t, d.Allowed())
			assert.Equal(t, installerProfile, d.Identity)
			want := session.FormatTimestamp(gateNow)
			created, ok := cookies.Written(session.CookieSessionCreated)
			require.True(t, ok)
			assert.Equal(t, want, created.Value)
			assert.Equal(t, session.TimestampMaxAge, created.MaxAge)
			last, ok := cookies.Written(session.CookieLastActivity)
			require.True(t, ok)
			assert.Equal(t, want, last.Value)
		})
	}
}

func TestRequestGate_AbsoluteTimeoutClearsSession(t *testing.T) {
	gate := newTestGate(resolvesTo(installerProfile), nil)
	cookies := authmocks.NewMemoryCookieStore(sessionCookies(ago(31*time.Minute), ago(5*time.Minute)))

	d := gate.Evaluate(context.Background(), "/installer", cookies)

	assert.Equal(t, OutcomeRedirect, d.Outcome)
	assert.Equal(t, "/login?reason=session-timeout", d.Location)
	assert.Equal(t, domainauth.FailureAbsoluteTimeout, d.Failure)
	assert.ElementsMatch(t, session.AllCookies, cookies.Deleted())
	for _, name := range session.AllCookies {
		_, present := cookies.Get(name)
		assert.False(t, present, name)
	}
}

func TestRequestGate_InactivityTimeoutClearsSession(t *testing.T) {
	gate := newTestGate(resolvesTo(installerProfile), nil)
	cookies := authmocks.NewMemoryCookieStore(sessionCookies(ago(10*time.Minute), ago(16*time.Minute)))

	d := gate.Evaluate(context.Background(), "/installer", cookies)

	assert.Equal(t, "/login?reason=inactivity-timeout", d.Location)
	assert.Equal(t, domainauth.FailureInactivityTimeout, d.Failure)
	assert.ElementsMatch(t, session.AllCookies, cookies.Deleted())
}

func TestRequestGate_BothTimeoutsReportAbsolute(t *testing.T) {
	gate := newTestGate(resolvesTo(installerProfile), nil)
	cookies := authmocks.NewMemoryCookieStore(sessionCookies(ago(45*time.Minute), ago(20*time.Minute)))

	d := gate.Evaluate(context.Background(), "/installer", cookies)

	assert.Equal(t, "/login?reason=session-timeout", d.Location)
}

func TestRequestGate_ActiveSessionUpdatesLastActivity(t *testing.T) {
	gate := newTestGate(resolvesTo(installerProfile), nil)
	created := ago(10 * time.Minute)
	cookies := authmocks.NewMemoryCookieStore(sessionCookies(created, ago(5*time.Minute)))

	d := gate.Evaluate(context.Background(), "/installer/jobs", cookies)

	require.True(t, d.Allowed())
	last, ok := cookies.Written(session.CookieLastActivity)
	require.True(t, ok)
	assert.Equal(t, session.FormatTimestamp(gateNow), last.Value)
	_, rewroteCreated := cookies.Written(session.CookieSessionCreated)
	assert.False(t, rewroteCreated, "session start is set once")
	v, _ := cookies.Get(session.CookieSessionCreated)
	assert.Equal(t, created, v)
	assert.Empty(t, cookies.Deleted())
}

func TestRequestGate_ShorterConfiguredWindows(t *testing.T) {
	gate := NewRequestGate(RequestGateOptions{
		Resolver: resolvesTo(installerProfile),
		Session: SessionClockConfig{
			Timeouts: session.Timeouts{Absolute: 5 * time.Minute, Inactivity: 2 * time.Minute},
			Clock:    fixedClock{now: gateNow},
		},
	})

	cookies := authmocks.NewMemoryCookieStore(sessionCookies(ago(4*time.Minute), ago(3*time.Minute)))
	d := gate.Evaluate(context.Background(), "/installer", cookies)
	assert.Equal(t, "/login?reason=inactivity-timeout", d.Location)

	cookies = authmocks.NewMemoryCookieStore(sessionCookies(ago(6*time.Minute), ago(time.Minute)))
	d = gate.Evaluate(context.Background(), "/installer", cookies)
	assert.Equal(t, "/login?reason=session-timeout", d.Location)
}

func TestRequestGate_RefreshedTokensWrittenOnlyWhenSessionSurvives(t *testing.T) {
	pair := domainauth.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}
	refreshed := resolverFunc(func(context.Context, string, string) (Resolution, error) {
		return Resolution{Identity: installerProfile, Refreshed: &pair}, nil
	})

	t.Run("allowed", func(t *testing.T) {
		metrics := &recordingMetrics{}
		gate := newTestGate(refreshed, metrics)
		cookies := authmocks.NewMemoryCookieStore(sessionCookies(ago(time.Minute), ago(time.Minute)))

		d := gate.Evaluate(context.Background(), "/installer", cookies)

		require.True(t, d.Allowed())
		access, ok := cookies.Written(session.CookieAccessToken)
		require.True(t, ok)
		assert.Equal(t, "new-access", access.Value)
		assert.Equal(t, session.AccessTokenMaxAge, access.MaxAge)
		refresh, ok := cookies.Written(session.CookieRefreshToken)
		require.True(t, ok)
		assert.Equal(t, "new-refresh", refresh.Value)
		assert.Equal(t, session.RefreshTokenMaxAge, refresh.MaxAge)
		assert.Equal(t, []string{RefreshSucceeded}, metrics.refreshes)
	})

	t.Run("timed out", func(t *testing.T) {
		gate := newTestGate(refreshed, nil)
		cookies := authmocks.NewMemoryCookieStore(sessionCookies(ago(time.Hour), ago(time.Minute)))

		d := gate.Evaluate(context.Background(), "/installer", cookies)

		assert.Equal(t, "/login?reason=session-timeout", d.Location)
		for _, w := range cookies.Writes() {
			assert.True(t, w.Deleted, "unexpected write %+v", w)
		}
	})
}

func TestRequestGate_RoleGate(t *testing.T) {
	admin := domainauth.Identity{ID: "a", Role: domainauth.RoleAdmin}
	stranger := domainauth.Identity{ID: "s", Role: domainauth.Role("auditor")}

	tests := []struct {
		name     string
		identity domainauth.Identity
		path     string
		wantLoc  string
		wantKind domainauth.FailureKind
	}{
		{name: "admin in admin area", identity: admin, path: "/admin/users"},
		{name: "installer in installer area", identity: installerProfile, path: "/installer"},
		{name: "installer in admin area", identity: installerProfile, path: "/admin", wantLoc: "/installer", wantKind: domainauth.FailureRoleMismatch},
		{name: "admin in installer area", identity: admin, path: "/installer/jobs", wantLoc: "/admin", wantKind: domainauth.FailureRoleMismatch},
		{name: "admin at root", identity: admin, path: "/", wantLoc: "/admin"},
		{name: "installer at root", identity: installerProfile, path: "/", wantLoc: "/installer"},
		{name: "prefix match is textual", identity: installerProfile, path: "/administration", wantLoc: "/installer", wantKind: domainauth.FailureRoleMismatch},
		{name: "unknown role at root", identity: stranger, path: "/", wantLoc: "/login?error=access_denied", wantKind: domainauth.FailureRoleMismatch},
		{name: "unknown role in admin area", identity: stranger, path: "/admin", wantLoc: "/login?error=access_denied", wantKind: domainauth.FailureRoleMismatch},
		{name: "unknown role elsewhere", identity: stranger, path: "/profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := newTestGate(resolvesTo(tt.identity), nil)
			cookies := authmocks.NewMemoryCookieStore(sessionCookies(ago(time.Minute), ago(time.Minute)))

			d := gate.Evaluate(context.Background(), tt.path, cookies)

			if tt.wantLoc == "" {
				require.True(t, d.Allowed(), "decision: %+v", d)
				assert.Equal(t, tt.identity, d.Identity)
				return
			}
			assert.Equal(t, OutcomeRedirect, d.Outcome)
			assert.Equal(t, tt.wantLoc, d.Location)
			assert.Equal(t, tt.wantKind, d.Failure)
			_, touched := cookies.Written(session.CookieLastActivity)
			assert.True(t, touched, "role redirects still count as activity")
		})
	}
}

func TestRequestGate_PanicBecomesErrorRedirect(t *testing.T) {
	metrics := &recordingMetrics{}
	gate := newTestGate(resolverFunc(func(context.Context, string, string) (Resolution, error) {
		panic("database connection lost")
	}), metrics)
	cookies := authmocks.NewMemoryCookieStore(sessionCookies("", ""))

	d := gate.Evaluate(context.Background(), "/admin", cookies)

	assert.Equal(t, OutcomeRedirect, d.Outcome)
	u, err := url.Parse(d.Location)
	require.NoError(t, err)
	assert.Equal(t, "/error", u.Path)
	assert.Equal(t, "database connection lost", u.Query().Get("message"))
	assert.Equal(t, []string{"redirect/error"}, metrics.decisions)
}

func TestRequestGate_UnexpectedErrorBecomesErrorRedirect(t *testing.T) {
	gate := newTestGate(failsWith(errRefreshReentered), nil)
	cookies := authmocks.NewMemoryCookieStore(sessionCookies("", ""))

	d := gate.Evaluate(context.Background(), "/installer", cookies)

	u, err := url.Parse(d.Location)
	require.NoError(t, err)
	assert.Equal(t, "/error", u.Path)
	assert.Equal(t, errRefreshReentered.Error(), u.Query().Get("message"))
	assert.Empty(t, cookies.Writes())
}

func TestRequestGate_RecordsMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	gate := newTestGate(failsWith(domainauth.NewFailure(domainauth.FailureSessionExpired, nil)), metrics)

	gate.Evaluate(context.Background(), "/installer", authmocks.NewMemoryCookieStore(sessionCookies("", "")))
	gate.Evaluate(context.Background(), "/login", authmocks.NewMemoryCookieStore(nil))

	assert.Equal(t, []string{"redirect/session_expired"}, metrics.decisions, "skipped paths are not recorded")
	assert.Equal(t, []string{RefreshDeclined}, metrics.refreshes)
}

// TestRequestGate_WithTokenResolver drives the gate through the real resolver
// and a refresh, so the written pair comes from the provider.
func TestRequestGate_WithTokenResolver(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockIdentityProvider(ctrl)
	users := mocks.NewMockUserStore(ctrl)
	ctx := context.Background()

	provider.EXPECT().GetUser(ctx, "access").Return(domainauth.Subject{}, errors.New("token is expired"))
	provider.EXPECT().Refresh(ctx, "refresh").Return(domainauth.TokenPair{
		AccessToken:  "rotated-access",
		RefreshToken: "rotated-refresh",
		Subject:      domainauth.Subject{UserID: installerProfile.ID},
	}, nil)
	users.EXPECT().GetByID(ctx, installerProfile.ID).Return(installerProfile, nil)

	gate := newTestGate(NewTokenResolver(TokenResolverOptions{Provider: provider, Users: users}), nil)
	cookies := authmocks.NewMemoryCookieStore(sessionCookies(ago(10*time.Minute), ago(5*time.Minute)))

	d := gate.Evaluate(ctx, "/installer", cookies)

	require.True(t, d.Allowed())
	v, _ := cookies.Get(session.CookieAccessToken)
	assert.Equal(t, "rotated-access", v)
	v, _ = cookies.Get(session.CookieRefreshToken)
	assert.Equal(t, "rotated-refresh", v)
}

func TestRequestGate_UserStoreOutageShowsErrorScreen(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockIdentityProvider(ctrl)
	users := mocks.NewMockUserStore(ctrl)
	ctx := context.Background()

	provider.EXPECT().GetUser(ctx, "access").Return(domainauth.Subject{UserID: installerProfile.ID}, nil)
	users.EXPECT().GetByID(ctx, installerProfile.ID).
		Return(domainauth.Identity{}, errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"))

	metrics := &recordingMetrics{}
	gate := newTestGate(NewTokenResolver(TokenResolverOptions{Provider: provider, Users: users}), metrics)
	cookies := authmocks.NewMemoryCookieStore(sessionCookies(ago(time.Minute), ago(time.Minute)))

	d := gate.Evaluate(ctx, "/installer", cookies)

	require.Equal(t, OutcomeRedirect, d.Outcome)
	u, err := url.Parse(d.Location)
	require.NoError(t, err)
	assert.Equal(t, "/error", u.Path)
	assert.Contains(t, u.Query().Get("message"), "connection refused")
	assert.Empty(t, d.Failure)
	assert.Equal(t, []string{"redirect/error"}, metrics.decisions)
}

func TestNewRequestGate_PanicsWithoutDependencies(t *testing.T) {
	assert.Panics(t, func() { NewRequestGate(RequestGateOptions{}) })
	assert.Panics(t, func() { NewRequestGate(RequestGateOptions{Resolver: resolvesTo(installerProfile)}) })
}
