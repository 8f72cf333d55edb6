//revive:disable-next-line:var-naming // legacy package name used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const maxMaterialDescriptionLen = 500

// Material is a line item used on an installation.
type Material struct {
	ID             string    `json:"id"              db:"id"`
	InstallationID string    `json:"installation_id" db:"installation_id"`
	Description    string    `json:"description"     db:"description"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
}

// AddMaterialRequest is the body accepted when recording a material.
type AddMaterialRequest struct {
	Description string `json:"description"`
}

//nolint:staticcheck // user-facing messages
var (
	errMaterialDescriptionRequired = errors.New("La descripción del material es obligatoria")
	errMaterialDescriptionTooLong  = errors.New("La descripción del material no puede superar 500 caracteres")
)

// Validate trims the description and checks its length.
func (r *AddMaterialRequest) Validate() error {
	r.Description = strings.TrimSpace(r.Description)
	if r.Description == "" {
		return errMaterialDescriptionRequired
	}
	if utf8.RuneCountInString(r.Description) > maxMaterialDescriptionLen {
		return errMaterialDescriptionTooLong
	}
	return nil
}
