package session

import (
	"net/url"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
)

// Reason codes carried on /login?reason=.
const (
	ReasonSessionExpired    = "session-expired"
	ReasonUnauthorized      = "unauthorized"
	ReasonSessionTimeout    = "session-timeout"
	ReasonInactivityTimeout = "inactivity-timeout"
)

// Error codes carried on /login?error=.
const (
	LoginErrorUnauthorized   = "unauthorized"
	LoginErrorInvalidSession = "invalid_session"
	LoginErrorAccessDenied   = "access_denied"
)

// Well-known paths.
const (
	PathLogin     = "/login"
	PathCallback  = "/auth/callback"
	PathLogout    = "/auth/logout"
	PathError     = "/error"
	PathAdmin     = "/admin"
	PathInstaller = "/installer"
)

// ReasonFor maps a failure kind to the login reason code shown to the user.
func ReasonFor(kind domainauth.FailureKind) string {
	switch kind {
	case domainauth.FailureSessionExpired:
		return ReasonSessionExpired
	case domainauth.FailureAbsoluteTimeout:
		return ReasonSessionTimeout
	case domainauth.FailureInactivityTimeout:
		return ReasonInactivityTimeout
	default:
		return ReasonUnauthorized
	}
}

// LoginURL returns the login location for a reason code.
func LoginURL(reason string) string {
	return PathLogin + "?" + url.Values{"reason": {reason}}.Encode()
}

// LoginErrorURL returns the login location for an error code.
func LoginErrorURL(code string) string {
	return PathLogin + "?" + url.Values{"error": {code}}.Encode()
}

// ErrorURL returns the error screen location carrying message.
func ErrorURL(message string) string {
	return PathError + "?" + url.Values{"message": {message}}.Encode()
}
