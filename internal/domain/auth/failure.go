package auth

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a request could not be authorized.
type FailureKind string

const (
	// FailureNoSession means no access token was presented.
	FailureNoSession FailureKind = "no_session"
	// FailureInvalidSession means the token was rejected and no refresh token was available.
	FailureInvalidSession FailureKind = "invalid_session"
	// FailureSessionExpired means a refresh was attempted and declined.
	FailureSessionExpired FailureKind = "session_expired"
	// FailureUserNotFound means the token is valid but no identity record backs it.
	FailureUserNotFound FailureKind = "user_not_found"
	// FailureAbsoluteTimeout means the session outlived its absolute window.
	FailureAbsoluteTimeout FailureKind = "absolute_timeout"
	// FailureInactivityTimeout means the gap since the last request exceeded the inactivity window.
	FailureInactivityTimeout FailureKind = "inactivity_timeout"
	// FailureRoleMismatch means the identity's role does not own the requested area.
	FailureRoleMismatch FailureKind = "role_mismatch"
)

// Failure is a typed authorization failure. It wraps the provider or store
// error that caused it, if any.
type Failure struct {
	Kind FailureKind
	Err  error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	msg := f.Kind.message()
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error { return f.Err }

// Is matches failures by kind so callers can use errors.Is(err, ErrSessionExpired).
func (f *Failure) Is(target error) bool {
	var t *Failure
	if errors.As(target, &t) {
		return t.Kind == f.Kind
	}
	return false
}

func (k FailureKind) message() string {
	switch k {
	case FailureNoSession:
		return "no session"
	case FailureInvalidSession:
		return "invalid session"
	case FailureSessionExpired:
		return "session expired"
	case FailureUserNotFound:
		return "user not found in database"
	case FailureAbsoluteTimeout:
		return "session timed out"
	case FailureInactivityTimeout:
		return "session inactive"
	case FailureRoleMismatch:
		return "role mismatch"
	default:
		return string(k)
	}
}

// NewFailure returns a Failure of the given kind wrapping cause.
func NewFailure(kind FailureKind, cause error) *Failure {
	return &Failure{Kind: kind, Err: cause}
}

// Sentinels for errors.Is comparisons.
var (
	ErrNoSession         error = &Failure{Kind: FailureNoSession}
	ErrInvalidSession    error = &Failure{Kind: FailureInvalidSession}
	ErrSessionExpired    error = &Failure{Kind: FailureSessionExpired}
	ErrUserNotFound      error = &Failure{Kind: FailureUserNotFound}
	ErrAbsoluteTimeout   error = &Failure{Kind: FailureAbsoluteTimeout}
	ErrInactivityTimeout error = &Failure{Kind: FailureInactivityTimeout}
	ErrRoleMismatch      error = &Failure{Kind: FailureRoleMismatch}
)

// KindOf returns the failure kind carried by err, or "" if err is not a Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
