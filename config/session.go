package config

import "time"

// Default session windows, in minutes.
const (
	DefaultSessionTimeoutMinutes    = 30
	DefaultInactivityTimeoutMinutes = 15
)

// SessionConfig holds the absolute and inactivity session windows.
type SessionConfig struct {
	TimeoutMinutes           int `env:"SESSION_TIMEOUT_MINUTES"            envDefault:"30"`
	InactivityTimeoutMinutes int `env:"SESSION_INACTIVITY_TIMEOUT_MINUTES" envDefault:"15"`
}

// Sanitize replaces non-positive windows with the defaults.
func (s *SessionConfig) Sanitize() {
	if s.TimeoutMinutes <= 0 {
		s.TimeoutMinutes = DefaultSessionTimeoutMinutes
	}
	if s.InactivityTimeoutMinutes <= 0 {
		s.InactivityTimeoutMinutes = DefaultInactivityTimeoutMinutes
	}
}

// AbsoluteTimeout returns the maximum session lifetime.
func (s SessionConfig) AbsoluteTimeout() time.Duration {
	return time.Duration(s.TimeoutMinutes) * time.Minute
}

// InactivityTimeout returns the maximum allowed gap between requests.
func (s SessionConfig) InactivityTimeout() time.Duration {
	return time.Duration(s.InactivityTimeoutMinutes) * time.Minute
}
