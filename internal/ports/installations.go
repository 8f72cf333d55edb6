package ports

import (
	"context"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/model"
)

// InstallationStore persists installations. Missing rows are reported as
// apperrors NotFound errors.
type InstallationStore interface {
	Create(ctx context.Context, req model.CreateInstallationRequest) (model.Installation, error)
	// GetByID returns the installation whether or not it is archived.
	GetByID(ctx context.Context, id string) (model.Installation, error)
	List(ctx context.Context, opts model.InstallationListOptions) ([]model.Installation, error)
	Update(ctx context.Context, id string, req model.UpdateInstallationRequest) (model.Installation, error)
	// SetArchived stamps archived_at with the current time, or clears it.
	SetArchived(ctx context.Context, id string, archived bool) (model.Installation, error)
	// Stats counts non-archived installations, limited to installerID when set.
	Stats(ctx context.Context, installerID string) (model.InstallationStats, error)
	// Workloads summarizes every installer, including those with no work.
	Workloads(ctx context.Context) ([]model.InstallerWorkload, error)
}

// MaterialStore persists the materials recorded against installations.
type MaterialStore interface {
	// ListByInstallation returns materials oldest first.
	ListByInstallation(ctx context.Context, installationID string) ([]model.Material, error)
	Add(ctx context.Context, installationID string, req model.AddMaterialRequest) (model.Material, error)
	GetByID(ctx context.Context, id string) (model.Material, error)
	Delete(ctx context.Context, id string) error
}

// UserDirectory is the admin view of the users table.
type UserDirectory interface {
	ListByRole(ctx context.Context, role domainauth.Role) ([]domainauth.Identity, error)
	ChangeRole(ctx context.Context, id string, role domainauth.Role) error
	UpdateProfile(ctx context.Context, id string, req model.UpdateProfileRequest) (domainauth.Identity, error)
	CountByRole(ctx context.Context) (model.UserCounts, error)
}

// IdentityInvalidator drops any cached copy of an identity.
type IdentityInvalidator interface {
	Invalidate(ctx context.Context, id string) error
}
