package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/mocks"
	"github.com/fieldops/installer-portal/internal/ports"
)

type resolverFixture struct {
	provider *mocks.MockIdentityProvider
	users    *mocks.MockUserStore
	resolver *TokenResolver
}

func newResolverFixture(t *testing.T) resolverFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockIdentityProvider(ctrl)
	users := mocks.NewMockUserStore(ctrl)
	return resolverFixture{
		provider: provider,
		users:    users,
		resolver: NewTokenResolver(TokenResolverOptions{Provider: provider, Users: users}),
	}
}

var adminIdentity = domainauth.Identity{ID: "11111111-1111-1111-1111-111111111111", Email: "ana@example.com", FullName: "Ana", Role: domainauth.RoleAdmin}

func TestTokenResolver_NoAccessToken(t *testing.T) {
	f := newResolverFixture(t)

	_, err := f.resolver.Resolve(context.Background(), "", "refresh")

	assert.ErrorIs(t, err, domainauth.ErrNoSession)
}

func TestTokenResolver_ValidToken(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	f.provider.EXPECT().GetUser(ctx, "access").Return(domainauth.Subject{UserID: adminIdentity.ID}, nil)
	f.users.EXPECT().GetByID(ctx, adminIdentity.ID).Return(adminIdentity, nil)

	res, err := f.resolver.Resolve(ctx, "access", "refresh")

	require.NoError(t, err)
	assert.Equal(t, adminIdentity, res.Identity)
	assert.Nil(t, res.Refreshed)
}

func TestTokenResolver_InvalidWithoutRefreshToken(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	f.provider.EXPECT().GetUser(ctx, "stale").Return(domainauth.Subject{}, errors.New("jwt expired"))

	_, err := f.resolver.Resolve(ctx, "stale", "")

	assert.ErrorIs(t, err, domainauth.ErrInvalidSession)
}

func TestTokenResolver_RefreshSucceeds(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()
	pair := domainauth.TokenPair{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		Subject:      domainauth.Subject{UserID: adminIdentity.ID},
	}

	gomock.InOrder(
		f.provider.EXPECT().GetUser(ctx, "stale").Return(domainauth.Subject{}, errors.New("jwt expired")),
		f.provider.EXPECT().Refresh(ctx, "refresh").Return(pair, nil).Times(1),
		f.users.EXPECT().GetByID(ctx, adminIdentity.ID).Return(adminIdentity, nil),
	)

	res, err := f.resolver.Resolve(ctx, "stale", "refresh")

	require.NoError(t, err)
	assert.Equal(t, adminIdentity, res.Identity)
	require.NotNil(t, res.Refreshed)
	assert.Equal(t, "new-access", res.Refreshed.AccessToken)
	assert.Equal(t, "new-refresh", res.Refreshed.RefreshToken)
}

func TestTokenResolver_RefreshWithoutSubjectRevalidates(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	gomock.InOrder(
		f.provider.EXPECT().GetUser(ctx, "stale").Return(domainauth.Subject{}, errors.New("jwt expired")),
		f.provider.EXPECT().Refresh(ctx, "refresh").Return(domainauth.TokenPair{AccessToken: "new-access"}, nil),
		f.provider.EXPECT().GetUser(ctx, "new-access").Return(domainauth.Subject{UserID: adminIdentity.ID}, nil),
		f.users.EXPECT().GetByID(ctx, adminIdentity.ID).Return(adminIdentity, nil),
	)

	res, err := f.resolver.Resolve(ctx, "stale", "refresh")

	require.NoError(t, err)
	require.NotNil(t, res.Refreshed)
	assert.Equal(t, "refresh", res.Refreshed.RefreshToken, "non-rotating providers keep the old refresh token")
}

func TestTokenResolver_RefreshDeclined(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	f.provider.EXPECT().GetUser(ctx, "stale").Return(domainauth.Subject{}, errors.New("jwt expired"))
	f.provider.EXPECT().Refresh(ctx, "revoked").Return(domainauth.TokenPair{}, errors.New("invalid_grant")).Times(1)

	_, err := f.resolver.Resolve(ctx, "stale", "revoked")

	assert.ErrorIs(t, err, domainauth.ErrSessionExpired)
}

func TestTokenResolver_RefreshedTokenStillRejected(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	f.provider.EXPECT().GetUser(ctx, "stale").Return(domainauth.Subject{}, errors.New("jwt expired"))
	f.provider.EXPECT().Refresh(ctx, "refresh").Return(domainauth.TokenPair{AccessToken: "new-access"}, nil).Times(1)
	f.provider.EXPECT().GetUser(ctx, "new-access").Return(domainauth.Subject{}, errors.New("still bad"))

	_, err := f.resolver.Resolve(ctx, "stale", "refresh")

	assert.ErrorIs(t, err, domainauth.ErrSessionExpired)
}

func TestTokenResolver_UserNotFound(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	f.provider.EXPECT().GetUser(ctx, "access").Return(domainauth.Subject{UserID: "ghost"}, nil)
	f.users.EXPECT().GetByID(ctx, "ghost").Return(domainauth.Identity{}, fmt.Errorf("no rows: %w", ports.ErrIdentityNotFound))

	_, err := f.resolver.Resolve(ctx, "access", "")

	assert.ErrorIs(t, err, domainauth.ErrUserNotFound)
}

func TestTokenResolver_UserNotFoundAfterRefresh(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	f.provider.EXPECT().GetUser(ctx, "stale").Return(domainauth.Subject{}, errors.New("jwt expired"))
	f.provider.EXPECT().Refresh(ctx, "refresh").
		Return(domainauth.TokenPair{AccessToken: "a", RefreshToken: "r", Subject: domainauth.Subject{UserID: "ghost"}}, nil)
	f.users.EXPECT().GetByID(ctx, "ghost").Return(domainauth.Identity{}, fmt.Errorf("no rows: %w", ports.ErrIdentityNotFound))

	_, err := f.resolver.Resolve(ctx, "stale", "refresh")

	assert.ErrorIs(t, err, domainauth.ErrUserNotFound)
}

func TestTokenResolver_StoreOutageIsNotUserNotFound(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()
	outage := errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")

	f.provider.EXPECT().GetUser(ctx, "access").Return(domainauth.Subject{UserID: adminIdentity.ID}, nil)
	f.users.EXPECT().GetByID(ctx, adminIdentity.ID).Return(domainauth.Identity{}, outage)

	_, err := f.resolver.Resolve(ctx, "access", "")

	require.ErrorIs(t, err, outage)
	assert.NotErrorIs(t, err, domainauth.ErrUserNotFound)
	assert.Empty(t, domainauth.KindOf(err), "infrastructure faults carry no failure kind")
}

func TestTokenResolver_RefreshStateIsEnteredOnce(t *testing.T) {
	f := newResolverFixture(t)
	run := &resolveRun{state: stateRefreshing, accessToken: "a", refreshToken: "r", refreshAttempted: true}

	f.resolver.step(context.Background(), run)

	assert.Equal(t, stateDone, run.state)
	assert.ErrorIs(t, run.err, errRefreshReentered)
	assert.Empty(t, domainauth.KindOf(run.err), "a broken state machine is not an auth failure")
}

func TestNewTokenResolver_PanicsWithoutDependencies(t *testing.T) {
	assert.Panics(t, func() { NewTokenResolver(TokenResolverOptions{}) })
}
