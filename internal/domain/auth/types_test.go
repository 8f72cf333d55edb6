package auth

import (
	"errors"
	"fmt"
	"testing"
)

func TestRole_HomePath(t *testing.T) {
	if got := RoleAdmin.HomePath(); got != "/admin" {
		t.Fatalf("admin home = %q", got)
	}
	if got := RoleInstaller.HomePath(); got != "/installer" {
		t.Fatalf("installer home = %q", got)
	}
}

func TestRole_Valid(t *testing.T) {
	if !RoleAdmin.Valid() || !RoleInstaller.Valid() {
		t.Fatal("expected known roles to be valid")
	}
	if Role("guest").Valid() || Role("").Valid() {
		t.Fatal("did not expect unknown roles to be valid")
	}
}

func TestIdentity_RoleHelpers(t *testing.T) {
	admin := Identity{ID: "u1", Role: RoleAdmin}
	if !admin.IsAdmin() || admin.IsInstaller() {
		t.Fatalf("unexpected role helpers for %+v", admin)
	}
	installer := Identity{ID: "u2", Role: RoleInstaller}
	if installer.IsAdmin() || !installer.IsInstaller() {
		t.Fatalf("unexpected role helpers for %+v", installer)
	}
}

func TestFailure_IsMatchesByKind(t *testing.T) {
	cause := errors.New("refresh_token_not_found")
	err := fmt.Errorf("resolve: %w", NewFailure(FailureSessionExpired, cause))

	if !errors.Is(err, ErrSessionExpired) {
		t.Fatal("expected errors.Is to match session expired")
	}
	if errors.Is(err, ErrInvalidSession) {
		t.Fatal("did not expect match on a different kind")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected the cause to remain reachable")
	}
	if got := KindOf(err); got != FailureSessionExpired {
		t.Fatalf("KindOf = %q", got)
	}
	if got := KindOf(cause); got != "" {
		t.Fatalf("KindOf(non-failure) = %q", got)
	}
}

func TestFailure_Error(t *testing.T) {
	if got := ErrNoSession.Error(); got != "no session" {
		t.Fatalf("message = %q", got)
	}
	f := NewFailure(FailureUserNotFound, errors.New("no rows"))
	if got := f.Error(); got != "user not found in database: no rows" {
		t.Fatalf("message = %q", got)
	}
}
