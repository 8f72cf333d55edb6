// Package session holds the session clock: pure evaluation of the absolute
// and inactivity windows against the timestamps a browser carries.
package session

import (
	"strconv"
	"strings"
	"time"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
)

// Cookie names carrying session state on the client.
const (
	CookieAccessToken    = "sb-access-token"
	CookieRefreshToken   = "sb-refresh-token"
	CookieSessionCreated = "sb-session-created"
	CookieLastActivity   = "sb-last-activity"
)

// AllCookies lists every session cookie, in the order they are cleared.
var AllCookies = []string{
	CookieAccessToken,
	CookieRefreshToken,
	CookieSessionCreated,
	CookieLastActivity,
}

// Cookie lifetimes.
const (
	AccessTokenMaxAge  = 7 * 24 * time.Hour
	RefreshTokenMaxAge = 30 * 24 * time.Hour
	TimestampMaxAge    = 30 * 24 * time.Hour
)

// Timeouts is the immutable pair of session windows.
type Timeouts struct {
	Absolute   time.Duration
	Inactivity time.Duration
}

// Input is everything Evaluate needs. A zero CreatedAt or LastActivityAt
// means the timestamp was absent.
type Input struct {
	Now            time.Time
	CreatedAt      time.Time
	LastActivityAt time.Time
	Timeouts       Timeouts
}

// State is the result of evaluating the clock.
type State struct {
	IsExpired      bool
	IsInactive     bool
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Evaluate computes the expiry state. Missing timestamps are replaced by
// Now, so an untracked session is never reported as timed out.
func Evaluate(in Input) State {
	created := in.CreatedAt
	if created.IsZero() {
		created = in.Now
	}
	last := in.LastActivityAt
	if last.IsZero() {
		last = in.Now
	}

	return State{
		IsExpired:      in.Now.Sub(created) > in.Timeouts.Absolute,
		IsInactive:     in.Now.Sub(last) > in.Timeouts.Inactivity,
		CreatedAt:      created,
		LastActivityAt: last,
	}
}

// TimedOut reports whether either window has elapsed.
func (s State) TimedOut() bool {
	return s.IsExpired || s.IsInactive
}

// Failure returns the single failure kind to report. The absolute window
// takes precedence when both have elapsed.
func (s State) Failure() domainauth.FailureKind {
	switch {
	case s.IsExpired:
		return domainauth.FailureAbsoluteTimeout
	case s.IsInactive:
		return domainauth.FailureInactivityTimeout
	default:
		return ""
	}
}

// ParseTimestamp decodes a base-10 millisecond epoch value. Empty, zero,
// signed or malformed input is reported as absent.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseUint(raw, 10, 63)
	if err != nil || ms == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

// FormatTimestamp encodes t as a base-10 millisecond epoch value.
func FormatTimestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
