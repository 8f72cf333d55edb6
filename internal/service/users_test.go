package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/model"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
	authmocks "github.com/fieldops/installer-portal/internal/mocks/auth"
)

var secondAdmin = domainauth.Identity{ID: "44444444-4444-4444-4444-444444444444", Email: "sara@example.com", FullName: "Sara", Role: domainauth.RoleAdmin}

func newUserAdmin(inv *authmocks.RecordingInvalidator, users ...domainauth.Identity) (*UserAdminService, *authmocks.MemoryUserStore) {
	store := authmocks.NewMemoryUserStore(users...)
	opts := UserAdminServiceOptions{Users: store}
	if inv != nil {
		opts.Invalidator = inv
	}
	return NewUserAdminService(opts), store
}

func TestNewUserAdminService_RequiresDirectory(t *testing.T) {
	assert.Panics(t, func() { NewUserAdminService(UserAdminServiceOptions{}) })
}

func TestUserAdminService_InstallersAndCounts(t *testing.T) {
	svc, _ := newUserAdmin(nil, adminIdentity, installerA, installerB)
	ctx := context.Background()

	installers, err := svc.Installers(ctx)
	require.NoError(t, err)
	require.Len(t, installers, 2)
	assert.Equal(t, "Bea", installers[0].FullName)
	assert.Equal(t, "Iván", installers[1].FullName)

	admins, err := svc.Admins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, adminIdentity.ID, admins[0].ID)

	counts, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.UserCounts{Admins: 1, Installers: 2}, counts)
}

func TestUserAdminService_ChangeRole(t *testing.T) {
	inv := &authmocks.RecordingInvalidator{}
	svc, store := newUserAdmin(inv, adminIdentity, installerA)
	ctx := context.Background()

	require.NoError(t, svc.ChangeRole(ctx, adminIdentity.ID, installerA.ID, domainauth.RoleAdmin))

	got, err := store.GetByID(ctx, installerA.ID)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, got.Role)
	assert.Equal(t, []string{installerA.ID}, inv.IDs())
}

func TestUserAdminService_ChangeRoleRejected(t *testing.T) {
	inv := &authmocks.RecordingInvalidator{}
	svc, _ := newUserAdmin(inv, adminIdentity, installerA)
	ctx := context.Background()

	err := svc.ChangeRole(ctx, adminIdentity.ID, adminIdentity.ID, domainauth.RoleInstaller)
	assert.ErrorIs(t, err, ErrSelfRoleChange)
	assert.True(t, apperrors.IsForbidden(err))
	assert.Equal(t, "No puedes cambiar tu propio rol", err.Error())

	err = svc.ChangeRole(ctx, adminIdentity.ID, installerA.ID, "owner")
	assert.ErrorIs(t, err, ErrInvalidRole)

	err = svc.ChangeRole(ctx, adminIdentity.ID, "missing", domainauth.RoleAdmin)
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.Empty(t, inv.IDs())
}

func TestUserAdminService_ChangeRoleLastAdmin(t *testing.T) {
	svc, _ := newUserAdmin(nil, adminIdentity, secondAdmin)
	ctx := context.Background()

	require.NoError(t, svc.ChangeRole(ctx, adminIdentity.ID, secondAdmin.ID, domainauth.RoleInstaller))

	err := svc.ChangeRole(ctx, secondAdmin.ID, adminIdentity.ID, domainauth.RoleInstaller)
	assert.True(t, apperrors.IsConflict(err))
}

func TestUserAdminService_ChangeRoleInvalidateFails(t *testing.T) {
	cacheErr := errors.New("redis down")
	inv := &authmocks.RecordingInvalidator{Err: cacheErr}
	svc, _ := newUserAdmin(inv, adminIdentity, installerA)

	err := svc.ChangeRole(context.Background(), adminIdentity.ID, installerA.ID, domainauth.RoleAdmin)

	assert.ErrorIs(t, err, cacheErr)
}

func TestUserAdminService_UpdateProfile(t *testing.T) {
	inv := &authmocks.RecordingInvalidator{Err: errors.New("redis down")}
	svc, _ := newUserAdmin(inv, installerA)
	ctx := context.Background()

	phone := "+34 612 345 678"
	name := " Iván Pérez "
	got, err := svc.UpdateProfile(ctx, installerA.ID, model.UpdateProfileRequest{FullName: &name, Phone: &phone})

	require.NoError(t, err, "a failed cache drop is only logged")
	assert.Equal(t, "Iván Pérez", got.FullName)
	assert.Equal(t, "+34 612 345 678", got.Phone)
	assert.Equal(t, []string{installerA.ID}, inv.IDs())
}

func TestUserAdminService_UpdateProfileInvalid(t *testing.T) {
	svc, _ := newUserAdmin(nil, installerA)
	ctx := context.Background()

	bad := "555-1234"
	_, err := svc.UpdateProfile(ctx, installerA.ID, model.UpdateProfileRequest{Phone: &bad})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, model.ErrInvalidPhone.Error(), err.Error())

	name := "Nadie"
	_, err = svc.UpdateProfile(ctx, "missing", model.UpdateProfileRequest{FullName: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
