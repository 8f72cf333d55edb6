//revive:disable-next-line:var-naming // legacy package name used across the project
package model

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// spanishPhonePatterns accept mobile (6, 7) and landline (9) numbers with an
// optional 34 or +34 prefix. Whitespace is removed before matching.
var spanishPhonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\+34[67][0-9]{8}$`),
	regexp.MustCompile(`^34[67][0-9]{8}$`),
	regexp.MustCompile(`^[67][0-9]{8}$`),
	regexp.MustCompile(`^\+349[0-9]{8}$`),
	regexp.MustCompile(`^349[0-9]{8}$`),
	regexp.MustCompile(`^9[0-9]{8}$`),
}

// IsValidSpanishPhone reports whether phone is a Spanish number.
func IsValidSpanishPhone(phone string) bool {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)
	for _, re := range spanishPhonePatterns {
		if re.MatchString(compact) {
			return true
		}
	}
	return false
}

// ErrInvalidPhone is returned for phone numbers that are not Spanish.
var ErrInvalidPhone = errors.New("Formato de teléfono inválido. Use formato: +34 XXX XXX XXX") //nolint:staticcheck // user-facing message

//nolint:staticcheck // user-facing messages
var (
	errFullNameRequired = errors.New("El nombre no puede estar vacío")
	errFullNameTooLong  = errors.New("El nombre no puede superar 255 caracteres")
	errNoProfileUpdates = errors.New("No hay cambios que guardar")
)

// UpdateProfileRequest carries the editable user profile fields.
// An empty Phone clears the number.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// HasUpdates reports whether any field is set.
func (r *UpdateProfileRequest) HasUpdates() bool {
	return r.FullName != nil || r.Phone != nil
}

// Validate trims the set fields and checks the phone format.
func (r *UpdateProfileRequest) Validate() error {
	if !r.HasUpdates() {
		return errNoProfileUpdates
	}
	if r.FullName != nil {
		*r.FullName = strings.TrimSpace(*r.FullName)
		if *r.FullName == "" {
			return errFullNameRequired
		}
		if utf8.RuneCountInString(*r.FullName) > maxClientNameLen {
			return errFullNameTooLong
		}
	}
	if r.Phone != nil {
		*r.Phone = strings.TrimSpace(*r.Phone)
		if *r.Phone != "" && !IsValidSpanishPhone(*r.Phone) {
			return ErrInvalidPhone
		}
	}
	return nil
}

// UserCounts is the number of users per role.
type UserCounts struct {
	Admins     int `json:"admins"     db:"admins"`
	Installers int `json:"installers" db:"installers"`
}
