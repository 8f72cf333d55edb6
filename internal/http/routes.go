package httpx

import (
	"log/slog"
	"net/http"

	"github.com/fieldops/installer-portal/internal/domain/session"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Gate     Gate                 // Required
	Auth     AuthServiceInterface // Required
	Tokens   TokenAuthenticator   // Required: API endpoints authenticate the cookie directly
	Push     PushServiceInterface // Required
	Renderer *TemplateRenderer    // Required
	Work     WorkServices         // Required

	Cookies CookieSettings
	// SignInURL is the login button target.
	SignInURL string
	// CallbackURL is the absolute /auth/callback URL given to code-flow providers.
	CallbackURL string

	// Optional
	Observer RequestObserver
	Logger   *slog.Logger
}

// WorkServices serve the installation pages of both role areas.
type WorkServices struct {
	Installations InstallationAdminService  // Required
	Users         UserAdminServiceInterface // Required
	FieldWork     FieldWorkServiceInterface // Required
}

// NewRouter builds the mux and wraps it with recover, logging and the session gate.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pages := &PageHandlers{Renderer: services.Renderer, SignInURL: services.SignInURL}
	auth := &AuthHandlers{
		Svc:         services.Auth,
		Cookies:     services.Cookies,
		CallbackURL: services.CallbackURL,
		Renderer:    services.Renderer,
		Logger:      logger,
	}
	push := &PushHandlers{Auth: services.Tokens, Svc: services.Push, Logger: logger}
	responder := pageResponder{Renderer: services.Renderer, Logger: logger}
	admin := &AdminHandlers{pageResponder: responder, Work: services.Work.Installations, Users: services.Work.Users}
	installer := &InstallerHandlers{pageResponder: responder, Work: services.Work.FieldWork}

	mux := http.NewServeMux()
	registerPageRoutes(mux, pages)
	registerAdminRoutes(mux, admin)
	registerInstallerRoutes(mux, installer)
	registerAuthRoutes(mux, auth)
	registerPushRoutes(mux, push)

	return Chain(mux,
		Recover(logger),
		Logging(logger, services.Observer),
		SessionGate(services.Gate, services.Cookies),
	)
}

func registerPageRoutes(mux *http.ServeMux, h *PageHandlers) {
	mux.HandleFunc("GET "+session.PathLogin, h.Login)
	mux.HandleFunc("GET "+session.PathError, h.Error)
	// "/" is always redirected by the gate; anything else unmatched is a 404.
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, session.PathLogin, http.StatusFound)
	})
}

func registerAdminRoutes(mux *http.ServeMux, h *AdminHandlers) {
	mux.HandleFunc("GET "+session.PathAdmin, h.Dashboard)
	mux.HandleFunc("GET "+pathAdminInstallations, h.Installations)
	mux.HandleFunc("POST "+pathAdminInstallations, h.CreateInstallation)
	mux.HandleFunc("GET "+pathAdminInstallations+"/{id}", h.Installation)
	mux.HandleFunc("POST "+pathAdminInstallations+"/{id}", h.UpdateInstallation)
	mux.HandleFunc("POST "+pathAdminInstallations+"/{id}/archive", h.ArchiveInstallation)
	mux.HandleFunc("POST "+pathAdminInstallations+"/{id}/restore", h.RestoreInstallation)
	mux.HandleFunc("GET "+pathAdminUsers, h.UsersPage)
	mux.HandleFunc("POST "+pathAdminUsers+"/{id}/role", h.ChangeRole)
	mux.HandleFunc("POST "+pathAdminUsers+"/{id}/profile", h.UpdateProfile)
}

func registerInstallerRoutes(mux *http.ServeMux, h *InstallerHandlers) {
	mux.HandleFunc("GET "+session.PathInstaller, h.Dashboard)
	mux.HandleFunc("GET "+pathInstallerInstallations, h.Installations)
	mux.HandleFunc("GET "+pathInstallerInstallations+"/{id}", h.Installation)
	mux.HandleFunc("POST "+pathInstallerInstallations+"/{id}/status", h.UpdateStatus)
	mux.HandleFunc("POST "+pathInstallerInstallations+"/{id}/notes", h.UpdateNotes)
	mux.HandleFunc("POST "+pathInstallerInstallations+"/{id}/materials", h.AddMaterial)
	mux.HandleFunc("POST "+pathInstallerMaterials+"/{id}/delete", h.DeleteMaterial)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET "+pathBeginLogin, h.BeginLogin)
	mux.HandleFunc("GET "+session.PathCallback, h.Callback)
	mux.HandleFunc("POST "+pathSetSession, h.SetSession)
	mux.HandleFunc("GET "+session.PathLogout, h.Logout)
	mux.HandleFunc("POST "+session.PathLogout, h.Logout)
}

func registerPushRoutes(mux *http.ServeMux, h *PushHandlers) {
	mux.HandleFunc("POST "+pathSubscribe, h.Subscribe)
	mux.HandleFunc("POST "+pathUnsubscribe, h.Unsubscribe)
}

// OpsServices configures the operations listener.
type OpsServices struct {
	// Metrics is mounted at MetricsPath when non-nil.
	Metrics        http.Handler
	MetricsPath    string
	HealthCheckers []HealthChecker
}

// NewOpsRouter serves /healthz and metrics on a listener of their own, so
// health checks and scrapers are not sent through the session gate.
func NewOpsRouter(ops OpsServices) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET "+pathHealth, healthHandler(ops.HealthCheckers...))
	if ops.Metrics != nil && ops.MetricsPath != "" {
		mux.Handle("GET "+ops.MetricsPath, ops.Metrics)
	}
	return mux
}
