package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/fieldops/installer-portal/internal/domain/model"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
	"github.com/fieldops/installer-portal/internal/ports"
)

// Installation errors shown to users. Store-level NotFound errors are
// translated to these sentinels.
var (
	ErrInstallationNotFound = apperrors.NotFound("Instalación no encontrada")
	ErrInstallationAccess   = apperrors.Forbidden("No tienes acceso a esta instalación")
	ErrMaterialNotFound     = apperrors.NotFound("Material no encontrado")
	ErrMaterialAccess       = apperrors.Forbidden("No tienes acceso a este material")
	ErrCancelNotAllowed     = apperrors.Forbidden("No tienes permiso para cancelar instalaciones")
)

// WorkStores groups the installation and material stores.
type WorkStores struct {
	Installations ports.InstallationStore // Required
	Materials     ports.MaterialStore     // Required
}

func (s WorkStores) mustBeComplete(owner string) {
	if s.Installations == nil {
		panic(owner + " requires an InstallationStore")
	}
	if s.Materials == nil {
		panic(owner + " requires a MaterialStore")
	}
}

// InstallationDetail is one installation with its materials.
type InstallationDetail struct {
	Installation model.Installation
	Materials    []model.Material
}

// AdminOverview feeds the admin dashboard.
type AdminOverview struct {
	Stats     model.InstallationStats
	Upcoming  []model.Installation
	Workloads []model.InstallerWorkload
}

// InstallationServiceOptions groups dependencies for InstallationService.
type InstallationServiceOptions struct {
	Stores WorkStores   // Required
	Logger *slog.Logger // Optional
}

// InstallationService is the admin side of installation management.
type InstallationService struct {
	stores WorkStores
	logger *slog.Logger
}

// NewInstallationService constructs an InstallationService.
func NewInstallationService(opts InstallationServiceOptions) *InstallationService {
	opts.Stores.mustBeComplete("InstallationService")
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &InstallationService{stores: opts.Stores, logger: logger.With("component", "installations")}
}

// Overview loads the dashboard stats, the next open installations and the
// per-installer workloads concurrently.
func (s *InstallationService) Overview(ctx context.Context) (AdminOverview, error) {
	var out AdminOverview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.stores.Installations.Stats(gctx, "")
		out.Stats = stats
		return err
	})
	g.Go(func() error {
		upcoming, err := s.stores.Installations.List(gctx, model.InstallationListOptions{
			Statuses: model.OpenInstallationStatuses(),
			Sort:     model.InstallationSortScheduled,
			Limit:    model.DefaultUpcomingLimit,
		})
		out.Upcoming = upcoming
		return err
	})
	g.Go(func() error {
		loads, err := s.stores.Installations.Workloads(gctx)
		out.Workloads = loads
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "load admin overview failed", "error", err)
		return AdminOverview{}, fmt.Errorf("load overview: %w", err)
	}
	return out, nil
}

// List returns installations matching opts, newest first unless opts.Sort says otherwise.
func (s *InstallationService) List(ctx context.Context, opts model.InstallationListOptions) ([]model.Installation, error) {
	rows, err := s.stores.Installations.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list installations: %w", err)
	}
	return rows, nil
}

// Detail returns an installation, archived or not, with its materials.
func (s *InstallationService) Detail(ctx context.Context, id string) (InstallationDetail, error) {
	inst, err := s.stores.Installations.GetByID(ctx, id)
	if err != nil {
		return InstallationDetail{}, installationErr(err)
	}
	materials, err := s.stores.Materials.ListByInstallation(ctx, id)
	if err != nil {
		return InstallationDetail{}, fmt.Errorf("list materials: %w", err)
	}
	return InstallationDetail{Installation: inst, Materials: materials}, nil
}

// Create validates and stores a new installation.
func (s *InstallationService) Create(ctx context.Context, req model.CreateInstallationRequest) (model.Installation, error) {
	if err := req.Validate(); err != nil {
		return model.Installation{}, apperrors.Validation(err.Error())
	}
	inst, err := s.stores.Installations.Create(ctx, req)
	if err != nil {
		return model.Installation{}, fmt.Errorf("create installation: %w", err)
	}
	s.logger.InfoContext(ctx, "installation created", "installation_id", inst.ID, "status", inst.Status)
	return inst, nil
}

// Update validates req and applies it to installation id.
func (s *InstallationService) Update(
	ctx context.Context,
	id string,
	req model.UpdateInstallationRequest,
) (model.Installation, error) {
	if err := req.Validate(); err != nil {
		return model.Installation{}, apperrors.Validation(err.Error())
	}
	inst, err := s.stores.Installations.Update(ctx, id, req)
	if err != nil {
		return model.Installation{}, installationErr(err)
	}
	return inst, nil
}

// Archive hides an installation from every list and dashboard.
func (s *InstallationService) Archive(ctx context.Context, id string) (model.Installation, error) {
	return s.setArchived(ctx, id, true)
}

// Restore undoes Archive.
func (s *InstallationService) Restore(ctx context.Context, id string) (model.Installation, error) {
	return s.setArchived(ctx, id, false)
}

func (s *InstallationService) setArchived(ctx context.Context, id string, archived bool) (model.Installation, error) {
	inst, err := s.stores.Installations.SetArchived(ctx, id, archived)
	if err != nil {
		return model.Installation{}, installationErr(err)
	}
	s.logger.InfoContext(ctx, "installation archive state changed", "installation_id", id, "archived", archived)
	return inst, nil
}

// installationErr replaces store NotFound errors with ErrInstallationNotFound.
func installationErr(err error) error {
	if apperrors.IsNotFound(err) {
		return ErrInstallationNotFound
	}
	return fmt.Errorf("installation: %w", err)
}
