//revive:disable-next-line:var-naming // legacy package name used across the project
package model

import (
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxClientNameLen = 255
	maxAddressLen    = 500
	maxNotesLen      = 5000

	// DefaultUpcomingLimit caps the upcoming lists of both dashboards.
	DefaultUpcomingLimit = 5
)

// InstallationStatus is the lifecycle state of an installation.
type InstallationStatus string

const (
	InstallationPending    InstallationStatus = "pending"
	InstallationInProgress InstallationStatus = "in_progress"
	InstallationCompleted  InstallationStatus = "completed"
	InstallationCancelled  InstallationStatus = "cancelled"
)

// InstallationStatuses lists every status in display order.
func InstallationStatuses() []InstallationStatus {
	return []InstallationStatus{InstallationPending, InstallationInProgress, InstallationCompleted, InstallationCancelled}
}

// OpenInstallationStatuses are the statuses that still need work.
func OpenInstallationStatuses() []InstallationStatus {
	return []InstallationStatus{InstallationPending, InstallationInProgress}
}

// Valid reports whether the status is supported.
func (s InstallationStatus) Valid() bool {
	switch s {
	case InstallationPending, InstallationInProgress, InstallationCompleted, InstallationCancelled:
		return true
	default:
		return false
	}
}

// Label returns the status as shown to users.
func (s InstallationStatus) Label() string {
	switch s {
	case InstallationPending:
		return "Pendiente"
	case InstallationInProgress:
		return "En Progreso"
	case InstallationCompleted:
		return "Completada"
	case InstallationCancelled:
		return "Cancelada"
	default:
		return string(s)
	}
}

// ParseInstallationStatus normalizes a status string and reports whether it is supported.
func ParseInstallationStatus(value string) (InstallationStatus, bool) {
	status := InstallationStatus(strings.ToLower(strings.TrimSpace(value)))
	if status.Valid() {
		return status, true
	}
	return "", false
}

// Installation is a job scheduled at a client address, optionally assigned
// to an installer. InstallerName and InstallerEmail come from the assignee.
type Installation struct {
	ID             string             `json:"id"                        db:"id"`
	ClientName     string             `json:"client_name"               db:"client_name"`
	ClientEmail    *string            `json:"client_email,omitempty"    db:"client_email"`
	ClientPhone    *string            `json:"client_phone,omitempty"    db:"client_phone"`
	Address        string             `json:"address"                   db:"address"`
	ScheduledDate  *time.Time         `json:"scheduled_date,omitempty"  db:"scheduled_date"`
	Status         InstallationStatus `json:"status"                    db:"status"`
	AssignedTo     *string            `json:"assigned_to,omitempty"     db:"assigned_to"`
	InstallerName  *string            `json:"installer_name,omitempty"  db:"installer_name"`
	InstallerEmail *string            `json:"installer_email,omitempty" db:"installer_email"`
	Notes          *string            `json:"notes,omitempty"           db:"notes"`
	ArchivedAt     *time.Time         `json:"archived_at,omitempty"     db:"archived_at"`
	CreatedAt      time.Time          `json:"created_at"                db:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"                db:"updated_at"`
}

// Archived reports whether the installation has been archived.
func (i Installation) Archived() bool {
	return i.ArchivedAt != nil
}

// AssignedToUser reports whether userID is the assignee.
func (i Installation) AssignedToUser(userID string) bool {
	return i.AssignedTo != nil && userID != "" && *i.AssignedTo == userID
}

// Installation list orderings.
const (
	// InstallationSortCreated lists the newest installations first.
	InstallationSortCreated = "created_at"
	// InstallationSortScheduled lists the soonest first; unscheduled rows go last.
	InstallationSortScheduled = "scheduled_date"
	// InstallationSortScheduledDesc lists the latest first; unscheduled rows go last.
	InstallationSortScheduledDesc = "-scheduled_date"
)

// InstallationListOptions controls filtering for listing installations.
// Notes:
// - Statuses matches any of the given statuses; empty matches all.
// - ScheduledFrom and ScheduledTo are inclusive, ScheduledBefore is exclusive.
// - IncludeUnscheduled keeps rows without a scheduled_date when ScheduledFrom is set.
// - Search matches client_name, client_email and address via ILIKE substring.
// - Sort supports the InstallationSort* values and defaults to InstallationSortCreated.
type InstallationListOptions struct {
	Statuses           []InstallationStatus
	InstallerID        string
	ScheduledFrom      *time.Time
	ScheduledTo        *time.Time
	ScheduledBefore    *time.Time
	IncludeUnscheduled bool
	Search             string
	IncludeArchived    bool
	Sort               string
	Limit              int
}

// CreateInstallationRequest represents parameters to create an Installation.
type CreateInstallationRequest struct {
	ClientName    string             `json:"client_name"`
	ClientEmail   string             `json:"client_email,omitempty"`
	ClientPhone   string             `json:"client_phone,omitempty"`
	Address       string             `json:"address"`
	ScheduledDate *time.Time         `json:"scheduled_date,omitempty"`
	Status        InstallationStatus `json:"status,omitempty"`
	AssignedTo    string             `json:"assigned_to,omitempty"`
	Notes         string             `json:"notes,omitempty"`
}

// Validate trims the request, defaults the status to pending and checks
// required fields.
func (r *CreateInstallationRequest) Validate() error {
	r.ClientName = strings.TrimSpace(r.ClientName)
	r.ClientEmail = strings.TrimSpace(r.ClientEmail)
	r.ClientPhone = strings.TrimSpace(r.ClientPhone)
	r.Address = strings.TrimSpace(r.Address)
	r.AssignedTo = strings.TrimSpace(r.AssignedTo)
	r.Notes = strings.TrimSpace(r.Notes)

	if err := validateClientName(r.ClientName); err != nil {
		return err
	}
	if err := validateAddress(r.Address); err != nil {
		return err
	}
	if err := validateClientEmail(r.ClientEmail); err != nil {
		return err
	}
	if utf8.RuneCountInString(r.Notes) > maxNotesLen {
		return errNotesTooLong
	}
	if r.Status == "" {
		r.Status = InstallationPending
	}
	if !r.Status.Valid() {
		return ErrInvalidInstallationStatus
	}
	return nil
}

// UpdateInstallationRequest represents parameters to update an Installation.
// Empty ClientEmail, ClientPhone, AssignedTo or Notes and a zero ScheduledDate
// clear the column.
type UpdateInstallationRequest struct {
	ClientName    *string             `json:"client_name,omitempty"`
	ClientEmail   *string             `json:"client_email,omitempty"`
	ClientPhone   *string             `json:"client_phone,omitempty"`
	Address       *string             `json:"address,omitempty"`
	ScheduledDate *time.Time          `json:"scheduled_date,omitempty"`
	Status        *InstallationStatus `json:"status,omitempty"`
	AssignedTo    *string             `json:"assigned_to,omitempty"`
	Notes         *string             `json:"notes,omitempty"`
}

// HasUpdates reports whether any field is set in UpdateInstallationRequest.
func (r *UpdateInstallationRequest) HasUpdates() bool {
	return r.ClientName != nil || r.ClientEmail != nil || r.ClientPhone != nil || r.Address != nil ||
		r.ScheduledDate != nil ||
		r.Status != nil ||
		r.AssignedTo != nil ||
		r.Notes != nil
}

// Validate ensures at least one field is set and trims the values that are.
func (r *UpdateInstallationRequest) Validate() error {
	if !r.HasUpdates() {
		return ErrNoInstallationUpdates
	}
	trim := func(p *string) {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	trim(r.ClientName)
	trim(r.ClientEmail)
	trim(r.ClientPhone)
	trim(r.Address)
	trim(r.AssignedTo)
	trim(r.Notes)

	if r.ClientName != nil {
		if err := validateClientName(*r.ClientName); err != nil {
			return err
		}
	}
	if r.Address != nil {
		if err := validateAddress(*r.Address); err != nil {
			return err
		}
	}
	if r.ClientEmail != nil {
		if err := validateClientEmail(*r.ClientEmail); err != nil {
			return err
		}
	}
	if r.Notes != nil && utf8.RuneCountInString(*r.Notes) > maxNotesLen {
		return errNotesTooLong
	}
	if r.Status != nil && !r.Status.Valid() {
		return ErrInvalidInstallationStatus
	}
	return nil
}

// InstallationStats counts non-archived installations by status.
type InstallationStats struct {
	Total      int `json:"total"       db:"total"`
	Pending    int `json:"pending"     db:"pending"`
	InProgress int `json:"in_progress" db:"in_progress"`
	Completed  int `json:"completed"   db:"completed"`
	Cancelled  int `json:"cancelled"   db:"cancelled"`
}

// Open returns the installations that still need work.
func (s InstallationStats) Open() int {
	return s.Pending + s.InProgress
}

// InstallerWorkload summarizes the non-archived work assigned to one installer.
type InstallerWorkload struct {
	ID        string `json:"id"        db:"id"`
	FullName  string `json:"full_name" db:"full_name"`
	Email     string `json:"email"     db:"email"`
	Active    int    `json:"active"    db:"active"`
	Completed int    `json:"completed" db:"completed"`
}

// Installation validation errors. Messages are shown to users.
//
//nolint:staticcheck // user-facing messages
var (
	ErrInvalidInstallationStatus = errors.New("Estado de instalación no válido")
	ErrNoInstallationUpdates     = errors.New("No hay cambios que guardar")
	errClientNameRequired        = errors.New("El nombre del cliente es obligatorio")
	errClientNameTooLong         = errors.New("El nombre del cliente no puede superar 255 caracteres")
	errAddressRequired           = errors.New("La dirección es obligatoria")
	errAddressTooLong            = errors.New("La dirección no puede superar 500 caracteres")
	errClientEmailInvalid        = errors.New("El email del cliente no es válido")
	errNotesTooLong              = errors.New("Las notas no pueden superar 5000 caracteres")
)

func validateClientName(name string) error {
	if name == "" {
		return errClientNameRequired
	}
	if utf8.RuneCountInString(name) > maxClientNameLen {
		return errClientNameTooLong
	}
	return nil
}

func validateAddress(address string) error {
	if address == "" {
		return errAddressRequired
	}
	if utf8.RuneCountInString(address) > maxAddressLen {
		return errAddressTooLong
	}
	return nil
}

func validateClientEmail(email string) error {
	if email == "" {
		return nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errClientEmailInvalid
	}
	return nil
}
