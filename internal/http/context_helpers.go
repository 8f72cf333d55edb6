package httpx

import (
	"context"
	"errors"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
)

// identityKey is an unexported context key type to avoid collisions across packages.
type identityKey struct{}

// Page helper errors. Reaching them means a handler was mounted outside the gate
// or behind the wrong role prefix.
var (
	ErrNoIdentity        = errors.New("no identity in request context")
	ErrAdminRequired     = errors.New("Admin access required")     //nolint:staticcheck // shown on the error page
	ErrInstallerRequired = errors.New("Installer access required") //nolint:staticcheck // shown on the error page
)

// SetIdentityInContext returns a child context that carries identity.
func SetIdentityInContext(ctx context.Context, identity domainauth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity attached by the session gate.
func IdentityFromContext(ctx context.Context) (domainauth.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(domainauth.Identity)
	return identity, ok
}

// RequireAdmin returns the attached identity if it is an admin.
func RequireAdmin(ctx context.Context) (domainauth.Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return domainauth.Identity{}, ErrNoIdentity
	}
	if !identity.IsAdmin() {
		return domainauth.Identity{}, ErrAdminRequired
	}
	return identity, nil
}

// RequireInstaller returns the attached identity if it is an installer.
func RequireInstaller(ctx context.Context) (domainauth.Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return domainauth.Identity{}, ErrNoIdentity
	}
	if !identity.IsInstaller() {
		return domainauth.Identity{}, ErrInstallerRequired
	}
	return identity, nil
}
