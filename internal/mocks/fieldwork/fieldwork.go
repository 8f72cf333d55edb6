// Package fieldwork contains in-memory installation and material stores for
// service and HTTP tests.
package fieldwork

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/model"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
	"github.com/fieldops/installer-portal/internal/ports"
)

var (
	_ ports.InstallationStore = (*MemoryInstallationStore)(nil)
	_ ports.MaterialStore     = (*MemoryMaterialStore)(nil)
)

// Errors returned for unknown ids. They match apperrors.IsNotFound.
var (
	ErrInstallationNotFound = apperrors.NotFound("installation not found")
	ErrMaterialNotFound     = apperrors.NotFound("material not found")
)

// MemoryInstallationStore keeps installations in a map. Installers supply
// the assignee name and email and the workload rows.
type MemoryInstallationStore struct {
	mu         sync.Mutex
	rows       map[string]model.Installation
	installers []domainauth.Identity
	clock      ports.Clock
	// Err, when set, fails every call.
	Err error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewMemoryInstallationStore creates an empty store. A nil clock uses the system time.
func NewMemoryInstallationStore(clock ports.Clock, installers ...domainauth.Identity) *MemoryInstallationStore {
	if clock == nil {
		clock = systemClock{}
	}
	return &MemoryInstallationStore{
		rows:       make(map[string]model.Installation),
		installers: installers,
		clock:      clock,
	}
}

// Seed stores inst as is, returning it with an id when it had none.
func (m *MemoryInstallationStore) Seed(inst model.Installation) model.Installation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	if inst.Status == "" {
		inst.Status = model.InstallationPending
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = m.clock.Now().UTC()
		inst.UpdatedAt = inst.CreatedAt
	}
	m.rows[inst.ID] = m.withInstallerLocked(inst)
	return m.rows[inst.ID]
}

func (m *MemoryInstallationStore) Create(_ context.Context, req model.CreateInstallationRequest) (model.Installation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Installation{}, m.Err
	}
	if req.AssignedTo != "" && !m.isInstallerLocked(req.AssignedTo) {
		return model.Installation{}, &apperrors.AppError{Code: apperrors.ErrCodeForeignKey, Message: "The referenced user does not exist."}
	}
	now := m.clock.Now().UTC()
	inst := model.Installation{
		ID:            uuid.NewString(),
		ClientName:    req.ClientName,
		ClientEmail:   blankToNil(req.ClientEmail),
		ClientPhone:   blankToNil(req.ClientPhone),
		Address:       req.Address,
		ScheduledDate: req.ScheduledDate,
		Status:        req.Status,
		AssignedTo:    blankToNil(req.AssignedTo),
		Notes:         blankToNil(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if inst.Status == "" {
		inst.Status = model.InstallationPending
	}
	inst = m.withInstallerLocked(inst)
	m.rows[inst.ID] = inst
	return inst, nil
}

func (m *MemoryInstallationStore) GetByID(_ context.Context, id string) (model.Installation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Installation{}, m.Err
	}
	inst, ok := m.rows[id]
	if !ok {
		return model.Installation{}, ErrInstallationNotFound
	}
	return inst, nil
}

func (m *MemoryInstallationStore) List(_ context.Context, opts model.InstallationListOptions) ([]model.Installation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []model.Installation
	for _, inst := range m.rows {
		if matches(inst, opts) {
			out = append(out, inst)
		}
	}
	sortInstallations(out, opts.Sort)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *MemoryInstallationStore) Update(_ context.Context, id string, req model.UpdateInstallationRequest) (model.Installation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Installation{}, m.Err
	}
	inst, ok := m.rows[id]
	if !ok {
		return model.Installation{}, ErrInstallationNotFound
	}
	if req.ClientName != nil {
		inst.ClientName = *req.ClientName
	}
	if req.ClientEmail != nil {
		inst.ClientEmail = blankToNil(*req.ClientEmail)
	}
	if req.ClientPhone != nil {
		inst.ClientPhone = blankToNil(*req.ClientPhone)
	}
	if req.Address != nil {
		inst.Address = *req.Address
	}
	if req.ScheduledDate != nil {
		if req.ScheduledDate.IsZero() {
			inst.ScheduledDate = nil
		} else {
			d := *req.ScheduledDate
			inst.ScheduledDate = &d
		}
	}
	if req.Status != nil {
		inst.Status = *req.Status
	}
	if req.AssignedTo != nil {
		inst.AssignedTo = blankToNil(*req.AssignedTo)
	}
	if req.Notes != nil {
		inst.Notes = blankToNil(*req.Notes)
	}
	inst.UpdatedAt = m.clock.Now().UTC()
	inst = m.withInstallerLocked(inst)
	m.rows[id] = inst
	return inst, nil
}

func (m *MemoryInstallationStore) SetArchived(_ context.Context, id string, archived bool) (model.Installation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Installation{}, m.Err
	}
	inst, ok := m.rows[id]
	if !ok {
		return model.Installation{}, ErrInstallationNotFound
	}
	now := m.clock.Now().UTC()
	inst.ArchivedAt = nil
	if archived {
		inst.ArchivedAt = &now
	}
	inst.UpdatedAt = now
	m.rows[id] = inst
	return inst, nil
}

func (m *MemoryInstallationStore) Stats(_ context.Context, installerID string) (model.InstallationStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.InstallationStats{}, m.Err
	}
	var s model.InstallationStats
	for _, inst := range m.rows {
		if inst.Archived() || (installerID != "" && !inst.AssignedToUser(installerID)) {
			continue
		}
		s.Total++
		switch inst.Status {
		case model.InstallationPending:
			s.Pending++
		case model.InstallationInProgress:
			s.InProgress++
		case model.InstallationCompleted:
			s.Completed++
		case model.InstallationCancelled:
			s.Cancelled++
		}
	}
	return s, nil
}

func (m *MemoryInstallationStore) Workloads(context.Context) ([]model.InstallerWorkload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]model.InstallerWorkload, 0, len(m.installers))
	for _, u := range m.installers {
		w := model.InstallerWorkload{ID: u.ID, FullName: u.FullName, Email: u.Email}
		for _, inst := range m.rows {
			if inst.Archived() || !inst.AssignedToUser(u.ID) {
				continue
			}
			switch inst.Status {
			case model.InstallationPending, model.InstallationInProgress:
				w.Active++
			case model.InstallationCompleted:
				w.Completed++
			}
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *MemoryInstallationStore) exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok
}

func (m *MemoryInstallationStore) isInstallerLocked(id string) bool {
	for _, u := range m.installers {
		if u.ID == id {
			return true
		}
	}
	return false
}

func (m *MemoryInstallationStore) withInstallerLocked(inst model.Installation) model.Installation {
	inst.InstallerName, inst.InstallerEmail = nil, nil
	if inst.AssignedTo == nil {
		return inst
	}
	for _, u := range m.installers {
		if u.ID == *inst.AssignedTo {
			name, email := u.FullName, u.Email
			inst.InstallerName, inst.InstallerEmail = &name, &email
		}
	}
	return inst
}

func matches(inst model.Installation, opts model.InstallationListOptions) bool {
	if !opts.IncludeArchived && inst.Archived() {
		return false
	}
	if len(opts.Statuses) > 0 && !containsStatus(opts.Statuses, inst.Status) {
		return false
	}
	if opts.InstallerID != "" && !inst.AssignedToUser(opts.InstallerID) {
		return false
	}
	if !matchesSchedule(inst.ScheduledDate, opts) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(opts.Search)); q != "" {
		email := ""
		if inst.ClientEmail != nil {
			email = *inst.ClientEmail
		}
		hay := strings.ToLower(inst.ClientName + "\x00" + email + "\x00" + inst.Address)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

func matchesSchedule(at *time.Time, opts model.InstallationListOptions) bool {
	if opts.ScheduledFrom == nil && opts.ScheduledTo == nil && opts.ScheduledBefore == nil {
		return true
	}
	if at == nil {
		return opts.ScheduledFrom != nil && opts.IncludeUnscheduled && opts.ScheduledTo == nil && opts.ScheduledBefore == nil
	}
	if opts.ScheduledFrom != nil && at.Before(*opts.ScheduledFrom) {
		return false
	}
	if opts.ScheduledTo != nil && at.After(*opts.ScheduledTo) {
		return false
	}
	if opts.ScheduledBefore != nil && !at.Before(*opts.ScheduledBefore) {
		return false
	}
	return true
}

func containsStatus(list []model.InstallationStatus, s model.InstallationStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortInstallations(rows []model.Installation, order string) {
	newestFirst := func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) }
	byDate := func(desc bool) func(i, j int) bool {
		return func(i, j int) bool {
			a, b := rows[i].ScheduledDate, rows[j].ScheduledDate
			switch {
			case a == nil && b == nil:
				return newestFirst(i, j)
			case a == nil:
				return false
			case b == nil:
				return true
			case a.Equal(*b):
				return newestFirst(i, j)
			case desc:
				return a.After(*b)
			default:
				return a.Before(*b)
			}
		}
	}
	switch order {
	case model.InstallationSortScheduled:
		sort.SliceStable(rows, byDate(false))
	case model.InstallationSortScheduledDesc:
		sort.SliceStable(rows, byDate(true))
	default:
		sort.SliceStable(rows, newestFirst)
	}
}

func blankToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// MemoryMaterialStore keeps materials in insertion order. Adding to an
// installation unknown to Installations fails like a foreign key would.
type MemoryMaterialStore struct {
	mu            sync.Mutex
	rows          []model.Material
	installations *MemoryInstallationStore
	clock         ports.Clock
	Err           error
}

// NewMemoryMaterialStore creates an empty store bound to installations.
func NewMemoryMaterialStore(installations *MemoryInstallationStore) *MemoryMaterialStore {
	clock := ports.Clock(systemClock{})
	if installations != nil {
		clock = installations.clock
	}
	return &MemoryMaterialStore{installations: installations, clock: clock}
}

func (m *MemoryMaterialStore) ListByInstallation(_ context.Context, installationID string) ([]model.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []model.Material
	for _, mat := range m.rows {
		if mat.InstallationID == installationID {
			out = append(out, mat)
		}
	}
	return out, nil
}

func (m *MemoryMaterialStore) Add(_ context.Context, installationID string, req model.AddMaterialRequest) (model.Material, error) {
	if m.installations != nil && !m.installations.exists(installationID) {
		return model.Material{}, &apperrors.AppError{Code: apperrors.ErrCodeForeignKey, Message: "The referenced installation does not exist."}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Material{}, m.Err
	}
	mat := model.Material{
		ID:             uuid.NewString(),
		InstallationID: installationID,
		Description:    req.Description,
		CreatedAt:      m.clock.Now().UTC(),
	}
	m.rows = append(m.rows, mat)
	return mat, nil
}

func (m *MemoryMaterialStore) GetByID(_ context.Context, id string) (model.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Material{}, m.Err
	}
	for _, mat := range m.rows {
		if mat.ID == id {
			return mat, nil
		}
	}
	return model.Material{}, ErrMaterialNotFound
}

func (m *MemoryMaterialStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i, mat := range m.rows {
		if mat.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return ErrMaterialNotFound
}
