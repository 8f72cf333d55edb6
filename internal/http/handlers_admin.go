package httpx

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/model"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
	"github.com/fieldops/installer-portal/internal/service"
)

// InstallationAdminService is the admin side of installation management.
type InstallationAdminService interface {
	Overview(ctx context.Context) (service.AdminOverview, error)
	List(ctx context.Context, opts model.InstallationListOptions) ([]model.Installation, error)
	Detail(ctx context.Context, id string) (service.InstallationDetail, error)
	Create(ctx context.Context, req model.CreateInstallationRequest) (model.Installation, error)
	Update(ctx context.Context, id string, req model.UpdateInstallationRequest) (model.Installation, error)
	Archive(ctx context.Context, id string) (model.Installation, error)
	Restore(ctx context.Context, id string) (model.Installation, error)
}

// UserAdminServiceInterface lists users and edits their role and profile.
type UserAdminServiceInterface interface {
	Admins(ctx context.Context) ([]domainauth.Identity, error)
	Installers(ctx context.Context) ([]domainauth.Identity, error)
	Counts(ctx context.Context) (model.UserCounts, error)
	ChangeRole(ctx context.Context, actorID, targetID string, role domainauth.Role) error
	UpdateProfile(ctx context.Context, id string, req model.UpdateProfileRequest) (domainauth.Identity, error)
}

// AdminHandlers serves the pages under /admin.
type AdminHandlers struct {
	pageResponder
	Work  InstallationAdminService
	Users UserAdminServiceInterface
}

type adminDashboardPage struct {
	pageFrame
	Overview service.AdminOverview
	Counts   model.UserCounts
}

type adminInstallationsPage struct {
	pageFrame
	Installations []model.Installation
	Filter        installationFilter
	Statuses      []model.InstallationStatus
	Installers    []domainauth.Identity
}

type adminInstallationPage struct {
	pageFrame
	Detail     service.InstallationDetail
	Statuses   []model.InstallationStatus
	Installers []domainauth.Identity
}

type adminUsersPage struct {
	pageFrame
	Admins     []domainauth.Identity
	Installers []domainauth.Identity
}

// Dashboard shows the installation counters, the next open installations,
// the installer workloads and the user counts. GET /admin.
func (h *AdminHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, RequireAdmin)
	if !ok {
		return
	}
	overview, err := h.Work.Overview(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	counts, err := h.Users.Counts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, "admin_dashboard", adminDashboardPage{
		pageFrame: newFrame(r, "Panel de administración", identity),
		Overview:  overview,
		Counts:    counts,
	})
}

// Installations lists installations with the filters of the query string
// and the create form. GET /admin/installations.
func (h *AdminHandlers) Installations(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, RequireAdmin)
	if !ok {
		return
	}
	filter := parseInstallationFilter(r.URL.Query())
	rows, err := h.Work.List(r.Context(), filter.options(h.Renderer.Location()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	installers, err := h.Users.Installers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, "admin_installations", adminInstallationsPage{
		pageFrame:     newFrame(r, "Instalaciones", identity),
		Installations: rows,
		Filter:        filter,
		Statuses:      model.InstallationStatuses(),
		Installers:    installers,
	})
}

// CreateInstallation handles the create form. POST /admin/installations.
func (h *AdminHandlers) CreateInstallation(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.identity(w, r, RequireAdmin); !ok {
		return
	}
	form, err := parseInstallationForm(w, r, h.Renderer.Location())
	if err != nil {
		h.failForm(w, r, pathAdminInstallations, err)
		return
	}
	inst, err := h.Work.Create(r.Context(), form.createRequest())
	if err != nil {
		h.failForm(w, r, pathAdminInstallations, err)
		return
	}
	h.done(w, r, adminInstallationPath(inst.ID), "Instalación creada")
}

// Installation shows one installation, archived or not, with the edit form.
// GET /admin/installations/{id}.
func (h *AdminHandlers) Installation(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, RequireAdmin)
	if !ok {
		return
	}
	detail, err := h.Work.Detail(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	installers, err := h.Users.Installers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, "admin_installation", adminInstallationPage{
		pageFrame:  newFrame(r, detail.Installation.ClientName, identity),
		Detail:     detail,
		Statuses:   model.InstallationStatuses(),
		Installers: installers,
	})
}

// UpdateInstallation saves the edit form. POST /admin/installations/{id}.
func (h *AdminHandlers) UpdateInstallation(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.identity(w, r, RequireAdmin); !ok {
		return
	}
	id := r.PathValue("id")
	back := adminInstallationPath(id)
	form, err := parseInstallationForm(w, r, h.Renderer.Location())
	if err != nil {
		h.failForm(w, r, back, err)
		return
	}
	if _, err := h.Work.Update(r.Context(), id, form.updateRequest()); err != nil {
		h.failForm(w, r, back, err)
		return
	}
	h.done(w, r, back, "Cambios guardados")
}

// ArchiveInstallation hides an installation. POST /admin/installations/{id}/archive.
func (h *AdminHandlers) ArchiveInstallation(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, h.Work.Archive, "Instalación archivada")
}

// RestoreInstallation undoes an archive. POST /admin/installations/{id}/restore.
func (h *AdminHandlers) RestoreInstallation(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, h.Work.Restore, "Instalación restaurada")
}

func (h *AdminHandlers) setArchived(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, string) (model.Installation, error),
	notice string,
) {
	if _, ok := h.identity(w, r, RequireAdmin); !ok {
		return
	}
	id := r.PathValue("id")
	if _, err := apply(r.Context(), id); err != nil {
		h.failForm(w, r, adminInstallationPath(id), err)
		return
	}
	h.done(w, r, adminInstallationPath(id), notice)
}

// UsersPage lists admins and installers with their role and profile forms.
// GET /admin/users.
func (h *AdminHandlers) UsersPage(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, RequireAdmin)
	if !ok {
		return
	}
	admins, err := h.Users.Admins(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	installers, err := h.Users.Installers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, "admin_users", adminUsersPage{
		pageFrame:  newFrame(r, "Usuarios", identity),
		Admins:     admins,
		Installers: installers,
	})
}

// ChangeRole handles POST /admin/users/{id}/role.
func (h *AdminHandlers) ChangeRole(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, RequireAdmin)
	if !ok {
		return
	}
	if err := parseForm(w, r); err != nil {
		h.failForm(w, r, pathAdminUsers, err)
		return
	}
	role := domainauth.Role(strings.TrimSpace(r.PostForm.Get("role")))
	if err := h.Users.ChangeRole(r.Context(), identity.ID, r.PathValue("id"), role); err != nil {
		h.failForm(w, r, pathAdminUsers, err)
		return
	}
	h.done(w, r, pathAdminUsers, "Rol actualizado")
}

// UpdateProfile handles POST /admin/users/{id}/profile.
func (h *AdminHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.identity(w, r, RequireAdmin); !ok {
		return
	}
	if err := parseForm(w, r); err != nil {
		h.failForm(w, r, pathAdminUsers, err)
		return
	}
	var req model.UpdateProfileRequest
	if v, ok := r.PostForm["full_name"]; ok {
		req.FullName = &v[0]
	}
	if v, ok := r.PostForm["phone"]; ok {
		req.Phone = &v[0]
	}
	if _, err := h.Users.UpdateProfile(r.Context(), r.PathValue("id"), req); err != nil {
		h.failForm(w, r, pathAdminUsers, err)
		return
	}
	h.done(w, r, pathAdminUsers, "Perfil actualizado")
}

func adminInstallationPath(id string) string {
	return pathAdminInstallations + "/" + url.PathEscape(id)
}

// installationFilter holds the raw list filters so the form can show them again.
type installationFilter struct {
	Status    string
	Installer string
	From      string
	To        string
	Q         string
	Archived  bool
}

func parseInstallationFilter(q url.Values) installationFilter {
	return installationFilter{
		Status:    strings.TrimSpace(q.Get("status")),
		Installer: strings.TrimSpace(q.Get("installer")),
		From:      strings.TrimSpace(q.Get("from")),
		To:        strings.TrimSpace(q.Get("to")),
		Q:         strings.TrimSpace(q.Get("q")),
		Archived:  q.Get("archived") == "1",
	}
}

// options ignores statuses and dates it cannot read. To includes the whole day.
func (f installationFilter) options(loc *time.Location) model.InstallationListOptions {
	opts := model.InstallationListOptions{
		InstallerID:     f.Installer,
		Search:          f.Q,
		IncludeArchived: f.Archived,
	}
	if s, err := model.ParseInstallationStatus(f.Status); err == nil {
		opts.Statuses = []model.InstallationStatus{s}
	}
	if from, err := time.ParseInLocation(dateInputLayout, f.From, loc); err == nil {
		opts.ScheduledFrom = &from
	}
	if to, err := time.ParseInLocation(dateInputLayout, f.To, loc); err == nil {
		end := to.AddDate(0, 0, 1)
		opts.ScheduledBefore = &end
	}
	return opts
}

// installationForm is the create and edit form of an installation.
type installationForm struct {
	ClientName    string
	ClientEmail   string
	ClientPhone   string
	Address       string
	ScheduledDate *time.Time
	Status        model.InstallationStatus
	AssignedTo    string
	Notes         string
}

var errInvalidScheduledDate = apperrors.Validation("Fecha programada no válida")

func parseInstallationForm(w http.ResponseWriter, r *http.Request, loc *time.Location) (installationForm, error) {
	if err := parseForm(w, r); err != nil {
		return installationForm{}, err
	}
	f := r.PostForm
	form := installationForm{
		ClientName:  f.Get("client_name"),
		ClientEmail: f.Get("client_email"),
		ClientPhone: f.Get("client_phone"),
		Address:     f.Get("address"),
		Status:      model.InstallationStatus(strings.TrimSpace(f.Get("status"))),
		AssignedTo:  f.Get("assigned_to"),
		Notes:       f.Get("notes"),
	}
	if raw := strings.TrimSpace(f.Get("scheduled_date")); raw != "" {
		at, err := time.ParseInLocation(dateTimeInputLayout, raw, loc)
		if err != nil {
			return installationForm{}, errInvalidScheduledDate
		}
		form.ScheduledDate = &at
	}
	return form, nil
}

func (f installationForm) createRequest() model.CreateInstallationRequest {
	return model.CreateInstallationRequest{
		ClientName:    f.ClientName,
		ClientEmail:   f.ClientEmail,
		ClientPhone:   f.ClientPhone,
		Address:       f.Address,
		ScheduledDate: f.ScheduledDate,
		Status:        f.Status,
		AssignedTo:    f.AssignedTo,
		Notes:         f.Notes,
	}
}

// updateRequest sets every field, since the edit form posts all of them. A
// blank date clears the schedule.
func (f installationForm) updateRequest() model.UpdateInstallationRequest {
	req := model.UpdateInstallationRequest{
		ClientName:    &f.ClientName,
		ClientEmail:   &f.ClientEmail,
		ClientPhone:   &f.ClientPhone,
		Address:       &f.Address,
		ScheduledDate: f.ScheduledDate,
		AssignedTo:    &f.AssignedTo,
		Notes:         &f.Notes,
	}
	if req.ScheduledDate == nil {
		req.ScheduledDate = &time.Time{}
	}
	if f.Status != "" {
		req.Status = &f.Status
	}
	return req
}

var errInvalidForm = apperrors.Validation("Formulario no válido")

func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		return errInvalidForm
	}
	return nil
}
