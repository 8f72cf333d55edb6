package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fieldops/installer-portal/internal/domain/model"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
	"github.com/fieldops/installer-portal/internal/ports"
)

// WorkCalendar decides which calendar day "today" is.
type WorkCalendar struct {
	Clock ports.Clock // Required
	// Location defaults to UTC.
	Location *time.Location
}

// day returns the start of the current day and of the next one.
func (c WorkCalendar) day() (time.Time, time.Time) {
	now := c.Clock.Now().In(c.Location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.Location)
	return start, start.AddDate(0, 0, 1)
}

// InstallerDashboard feeds the installer home page.
type InstallerDashboard struct {
	Stats    model.InstallationStats
	Today    []model.Installation
	Upcoming []model.Installation
}

// FieldWorkServiceOptions groups dependencies for FieldWorkService.
type FieldWorkServiceOptions struct {
	Stores   WorkStores   // Required
	Calendar WorkCalendar // Required: Clock must be set
	Logger   *slog.Logger // Optional
}

// FieldWorkService is what installers can see and do with the installations
// assigned to them. Every operation takes the acting installer's id.
type FieldWorkService struct {
	stores   WorkStores
	calendar WorkCalendar
	logger   *slog.Logger
}

// NewFieldWorkService constructs a FieldWorkService.
func NewFieldWorkService(opts FieldWorkServiceOptions) *FieldWorkService {
	opts.Stores.mustBeComplete("FieldWorkService")
	if opts.Calendar.Clock == nil {
		panic("FieldWorkService requires a Clock")
	}
	if opts.Calendar.Location == nil {
		opts.Calendar.Location = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FieldWorkService{
		stores:   opts.Stores,
		calendar: opts.Calendar,
		logger:   logger.With("component", "field_work"),
	}
}

// Dashboard loads the installer's counters, today's installations and the
// next open ones from tomorrow on. Unscheduled open work counts as upcoming.
func (s *FieldWorkService) Dashboard(ctx context.Context, userID string) (InstallerDashboard, error) {
	start, tomorrow := s.calendar.day()
	var out InstallerDashboard

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.stores.Installations.Stats(gctx, userID)
		out.Stats = stats
		return err
	})
	g.Go(func() error {
		today, err := s.stores.Installations.List(gctx, model.InstallationListOptions{
			InstallerID:     userID,
			ScheduledFrom:   &start,
			ScheduledBefore: &tomorrow,
			Sort:            model.InstallationSortScheduled,
		})
		out.Today = today
		return err
	})
	g.Go(func() error {
		upcoming, err := s.stores.Installations.List(gctx, model.InstallationListOptions{
			InstallerID:        userID,
			Statuses:           model.OpenInstallationStatuses(),
			ScheduledFrom:      &tomorrow,
			IncludeUnscheduled: true,
			Sort:               model.InstallationSortScheduled,
			Limit:              model.DefaultUpcomingLimit,
		})
		out.Upcoming = upcoming
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "load installer dashboard failed", "user_id", userID, "error", err)
		return InstallerDashboard{}, fmt.Errorf("load dashboard: %w", err)
	}
	return out, nil
}

// Assigned lists every non-archived installation assigned to userID, latest
// scheduled first. Only the status and schedule filters of opts apply.
func (s *FieldWorkService) Assigned(
	ctx context.Context,
	userID string,
	opts model.InstallationListOptions,
) ([]model.Installation, error) {
	rows, err := s.stores.Installations.List(ctx, model.InstallationListOptions{
		InstallerID:   userID,
		Statuses:      opts.Statuses,
		ScheduledFrom: opts.ScheduledFrom,
		ScheduledTo:   opts.ScheduledTo,
		Sort:          model.InstallationSortScheduledDesc,
		Limit:         opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list assigned installations: %w", err)
	}
	return rows, nil
}

// Detail returns an assigned installation with its materials. Installations
// assigned to someone else are reported as not found.
func (s *FieldWorkService) Detail(ctx context.Context, userID, installationID string) (InstallationDetail, error) {
	inst, err := s.assigned(ctx, userID, installationID)
	if apperrors.IsForbidden(err) {
		return InstallationDetail{}, ErrInstallationNotFound
	}
	if err != nil {
		return InstallationDetail{}, err
	}
	materials, err := s.stores.Materials.ListByInstallation(ctx, installationID)
	if err != nil {
		return InstallationDetail{}, fmt.Errorf("list materials: %w", err)
	}
	return InstallationDetail{Installation: inst, Materials: materials}, nil
}

// UpdateStatus moves an assigned installation to status. Installers may not
// cancel.
func (s *FieldWorkService) UpdateStatus(
	ctx context.Context,
	userID, installationID string,
	status model.InstallationStatus,
) (model.Installation, error) {
	if status == model.InstallationCancelled {
		return model.Installation{}, ErrCancelNotAllowed
	}
	if !status.Valid() {
		return model.Installation{}, apperrors.Validation(model.ErrInvalidInstallationStatus.Error())
	}
	if _, err := s.assigned(ctx, userID, installationID); err != nil {
		return model.Installation{}, err
	}
	inst, err := s.stores.Installations.Update(ctx, installationID, model.UpdateInstallationRequest{Status: &status})
	if err != nil {
		return model.Installation{}, installationErr(err)
	}
	s.logger.InfoContext(ctx, "installation status changed",
		"installation_id", installationID, "user_id", userID, "status", status)
	return inst, nil
}

// UpdateNotes replaces the notes of an assigned installation. Blank notes
// clear them.
func (s *FieldWorkService) UpdateNotes(ctx context.Context, userID, installationID, notes string) (model.Installation, error) {
	req := model.UpdateInstallationRequest{Notes: &notes}
	if err := req.Validate(); err != nil {
		return model.Installation{}, apperrors.Validation(err.Error())
	}
	if _, err := s.assigned(ctx, userID, installationID); err != nil {
		return model.Installation{}, err
	}
	inst, err := s.stores.Installations.Update(ctx, installationID, req)
	if err != nil {
		return model.Installation{}, installationErr(err)
	}
	return inst, nil
}

// AddMaterial records a material on an assigned installation.
func (s *FieldWorkService) AddMaterial(
	ctx context.Context,
	userID, installationID string,
	req model.AddMaterialRequest,
) (model.Material, error) {
	if err := req.Validate(); err != nil {
		return model.Material{}, apperrors.Validation(err.Error())
	}
	if _, err := s.assigned(ctx, userID, installationID); err != nil {
		return model.Material{}, err
	}
	mat, err := s.stores.Materials.Add(ctx, installationID, req)
	if err != nil {
		return model.Material{}, fmt.Errorf("add material: %w", err)
	}
	return mat, nil
}

// DeleteMaterial removes a material from an installation assigned to userID.
func (s *FieldWorkService) DeleteMaterial(ctx context.Context, userID, materialID string) error {
	mat, err := s.stores.Materials.GetByID(ctx, materialID)
	if apperrors.IsNotFound(err) {
		return ErrMaterialNotFound
	}
	if err != nil {
		return fmt.Errorf("load material: %w", err)
	}
	inst, err := s.stores.Installations.GetByID(ctx, mat.InstallationID)
	if apperrors.IsNotFound(err) {
		return ErrMaterialNotFound
	}
	if err != nil {
		return fmt.Errorf("load installation: %w", err)
	}
	if !inst.AssignedToUser(userID) {
		return ErrMaterialAccess
	}
	if err := s.stores.Materials.Delete(ctx, materialID); err != nil {
		if apperrors.IsNotFound(err) {
			return ErrMaterialNotFound
		}
		return fmt.Errorf("delete material: %w", err)
	}
	return nil
}

// assigned loads a non-archived installation and checks that userID is the assignee.
func (s *FieldWorkService) assigned(ctx context.Context, userID, installationID string) (model.Installation, error) {
	inst, err := s.stores.Installations.GetByID(ctx, installationID)
	if err != nil {
		return model.Installation{}, installationErr(err)
	}
	if inst.Archived() {
		return model.Installation{}, ErrInstallationNotFound
	}
	if !inst.AssignedToUser(userID) {
		return model.Installation{}, ErrInstallationAccess
	}
	return inst, nil
}
