package httpx

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldops/installer-portal/internal/domain/model"
	"github.com/fieldops/installer-portal/internal/service"
)

// FieldWorkServiceInterface is what an installer can do with their own work.
type FieldWorkServiceInterface interface {
	Dashboard(ctx context.Context, userID string) (service.InstallerDashboard, error)
	Assigned(ctx context.Context, userID string, opts model.InstallationListOptions) ([]model.Installation, error)
	Detail(ctx context.Context, userID, installationID string) (service.InstallationDetail, error)
	UpdateStatus(ctx context.Context, userID, installationID string, status model.InstallationStatus) (model.Installation, error)
	UpdateNotes(ctx context.Context, userID, installationID, notes string) (model.Installation, error)
	AddMaterial(ctx context.Context, userID, installationID string, req model.AddMaterialRequest) (model.Material, error)
	DeleteMaterial(ctx context.Context, userID, materialID string) error
}

// InstallerHandlers serves the pages under /installer.
type InstallerHandlers struct {
	pageResponder
	Work FieldWorkServiceInterface
}

// installerStatuses are the statuses an installer may pick.
var installerStatuses = []model.InstallationStatus{
	model.InstallationPending,
	model.InstallationInProgress,
	model.InstallationCompleted,
}

type installerDashboardPage struct {
	pageFrame
	Dashboard service.InstallerDashboard
}

type installerInstallationsPage struct {
	pageFrame
	Installations []model.Installation
	Status        string
	Statuses      []model.InstallationStatus
}

type installerInstallationPage struct {
	pageFrame
	Detail   service.InstallationDetail
	Statuses []model.InstallationStatus
}

// Dashboard shows the installer's counters, today's work and what comes
// next. GET /installer.
func (h *InstallerHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, RequireInstaller)
	if !ok {
		return
	}
	dash, err := h.Work.Dashboard(r.Context(), identity.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, "installer_dashboard", installerDashboardPage{
		pageFrame: newFrame(r, "Mis instalaciones", identity),
		Dashboard: dash,
	})
}

// Installations lists every installation assigned to the installer.
// GET /installer/installations?status=.
func (h *InstallerHandlers) Installations(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, RequireInstaller)
	if !ok {
		return
	}
	page := installerInstallationsPage{
		pageFrame: newFrame(r, "Instalaciones asignadas", identity),
		Statuses:  model.InstallationStatuses(),
	}
	var opts model.InstallationListOptions
	if s, err := model.ParseInstallationStatus(strings.TrimSpace(r.URL.Query().Get("status"))); err == nil {
		opts.Statuses = []model.InstallationStatus{s}
		page.Status = string(s)
	}
	rows, err := h.Work.Assigned(r.Context(), identity.ID, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page.Installations = rows
	h.render(w, "installer_installations", page)
}

// Installation shows one assigned installation. GET /installer/installations/{id}.
func (h *InstallerHandlers) Installation(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, RequireInstaller)
	if !ok {
		return
	}
	detail, err := h.Work.Detail(r.Context(), identity.ID, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, "installer_installation", installerInstallationPage{
		pageFrame: newFrame(r, detail.Installation.ClientName, identity),
		Detail:    detail,
		Statuses:  installerStatuses,
	})
}

// UpdateStatus handles POST /installer/installations/{id}/status.
func (h *InstallerHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, "Estado actualizado", func(ctx context.Context, userID, id string, form url.Values) error {
		status := model.InstallationStatus(strings.TrimSpace(form.Get("status")))
		_, err := h.Work.UpdateStatus(ctx, userID, id, status)
		return err
	})
}

// UpdateNotes handles POST /installer/installations/{id}/notes.
func (h *InstallerHandlers) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, "Notas guardadas", func(ctx context.Context, userID, id string, form url.Values) error {
		_, err := h.Work.UpdateNotes(ctx, userID, id, form.Get("notes"))
		return err
	})
}

// AddMaterial handles POST /installer/installations/{id}/materials.
func (h *InstallerHandlers) AddMaterial(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, "Material añadido", func(ctx context.Context, userID, id string, form url.Values) error {
		_, err := h.Work.AddMaterial(ctx, userID, id, model.AddMaterialRequest{Description: form.Get("description")})
		return err
	})
}

// DeleteMaterial handles POST /installer/materials/{id}/delete. The form's
// installation_id only picks the page to go back to.
func (h *InstallerHandlers) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, RequireInstaller)
	if !ok {
		return
	}
	back := pathInstallerInstallations
	if err := parseForm(w, r); err != nil {
		h.failForm(w, r, back, err)
		return
	}
	if id := strings.TrimSpace(r.PostForm.Get("installation_id")); uuid.Validate(id) == nil {
		back = installerInstallationPath(id)
	}
	if err := h.Work.DeleteMaterial(r.Context(), identity.ID, r.PathValue("id")); err != nil {
		h.failForm(w, r, back, err)
		return
	}
	h.done(w, r, back, "Material eliminado")
}

// post runs a form action on the installation in the path and returns to its page.
func (h *InstallerHandlers) post(
	w http.ResponseWriter,
	r *http.Request,
	notice string,
	apply func(ctx context.Context, userID, installationID string, form url.Values) error,
) {
	identity, ok := h.identity(w, r, RequireInstaller)
	if !ok {
		return
	}
	id := r.PathValue("id")
	back := installerInstallationPath(id)
	if err := parseForm(w, r); err != nil {
		h.failForm(w, r, back, err)
		return
	}
	if err := apply(r.Context(), identity.ID, id, r.PostForm); err != nil {
		h.failForm(w, r, back, err)
		return
	}
	h.done(w, r, back, notice)
}

func installerInstallationPath(id string) string {
	return pathInstallerInstallations + "/" + url.PathEscape(id)
}
