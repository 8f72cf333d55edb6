package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/model"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
	"github.com/fieldops/installer-portal/internal/ports"
)

var (
	// ErrSelfRoleChange rejects an admin changing their own role.
	ErrSelfRoleChange = apperrors.Forbidden("No puedes cambiar tu propio rol")
	// ErrInvalidRole rejects roles other than admin and installer.
	ErrInvalidRole = apperrors.Validation("Rol inválido")
	// ErrUserNotFound is shown when the target user does not exist.
	ErrUserNotFound = apperrors.NotFound("Usuario no encontrado")
)

// UserAdminServiceOptions groups dependencies for UserAdminService.
type UserAdminServiceOptions struct {
	Users ports.UserDirectory // Required
	// Invalidator drops cached identities after a change. Optional.
	Invalidator ports.IdentityInvalidator
	Logger      *slog.Logger // Optional
}

// UserAdminService lets admins list users, change roles and edit profiles.
type UserAdminService struct {
	users       ports.UserDirectory
	invalidator ports.IdentityInvalidator
	logger      *slog.Logger
}

// NewUserAdminService constructs a UserAdminService.
func NewUserAdminService(opts UserAdminServiceOptions) *UserAdminService {
	if opts.Users == nil {
		panic("UserAdminService requires a UserDirectory")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UserAdminService{
		users:       opts.Users,
		invalidator: opts.Invalidator,
		logger:      logger.With("component", "user_admin"),
	}
}

// Installers lists installer accounts by name.
func (s *UserAdminService) Installers(ctx context.Context) ([]domainauth.Identity, error) {
	out, err := s.users.ListByRole(ctx, domainauth.RoleInstaller)
	if err != nil {
		return nil, fmt.Errorf("list installers: %w", err)
	}
	return out, nil
}

// Admins lists admin accounts by name.
func (s *UserAdminService) Admins(ctx context.Context) ([]domainauth.Identity, error) {
	out, err := s.users.ListByRole(ctx, domainauth.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return out, nil
}

// Counts returns how many admins and installers exist.
func (s *UserAdminService) Counts(ctx context.Context) (model.UserCounts, error) {
	out, err := s.users.CountByRole(ctx)
	if err != nil {
		return model.UserCounts{}, fmt.Errorf("count users: %w", err)
	}
	return out, nil
}

// ChangeRole sets targetID's role on behalf of actorID. The cached identity is
// dropped so the next request sees the new role; a failed drop is returned
// because a stale admin role would outlive the change.
func (s *UserAdminService) ChangeRole(ctx context.Context, actorID, targetID string, role domainauth.Role) error {
	if actorID == targetID {
		return ErrSelfRoleChange
	}
	if !role.Valid() {
		return ErrInvalidRole
	}
	if err := s.users.ChangeRole(ctx, targetID, role); err != nil {
		return userErr(err)
	}
	s.logger.InfoContext(ctx, "user role changed", "actor_id", actorID, "user_id", targetID, "role", role)
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, targetID); err != nil {
			s.logger.ErrorContext(ctx, "invalidate cached identity failed", "user_id", targetID, "error", err)
			return fmt.Errorf("invalidate identity: %w", err)
		}
	}
	return nil
}

// UpdateProfile validates req and applies it to user id.
func (s *UserAdminService) UpdateProfile(
	ctx context.Context,
	id string,
	req model.UpdateProfileRequest,
) (domainauth.Identity, error) {
	if err := req.Validate(); err != nil {
		return domainauth.Identity{}, apperrors.Validation(err.Error())
	}
	ident, err := s.users.UpdateProfile(ctx, id, req)
	if err != nil {
		return domainauth.Identity{}, userErr(err)
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "invalidate cached identity failed", "user_id", id, "error", err)
		}
	}
	return ident, nil
}

func userErr(err error) error {
	if apperrors.IsNotFound(err) || errors.Is(err, ports.ErrIdentityNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("user: %w", err)
}
