package data

import (
	"fmt"

	apperrors "github.com/fieldops/installer-portal/internal/errors"
	"github.com/fieldops/installer-portal/internal/ports"
)

// Shared sentinel errors for data-layer repositories.
var (
	// ErrUserNotFound is returned when no users row matches the id.
	ErrUserNotFound = fmt.Errorf("user not found: %w", ports.ErrIdentityNotFound)
	// ErrLastAdmin is returned when a role change would leave no admin.
	ErrLastAdmin = apperrors.Conflict("No se puede quitar el rol al último administrador")
	// ErrInstallationNotFound is returned when no installations row matches the id.
	ErrInstallationNotFound = apperrors.NotFound("installation not found")
	// ErrMaterialNotFound is returned when no materials row matches the id.
	ErrMaterialNotFound = apperrors.NotFound("material not found")
)
