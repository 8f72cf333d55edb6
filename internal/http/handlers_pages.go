package httpx

import (
	"net/http"
	"strings"

	"github.com/fieldops/installer-portal/internal/domain/session"
)

// DefaultErrorMessage is shown when /error carries no message.
const DefaultErrorMessage = "Ha ocurrido un error inesperado"

// reasonBanners are the role="status" messages for /login?reason=.
var reasonBanners = map[string]string{
	session.ReasonSessionExpired:    "Tu sesión ha expirado. Por favor, inicia sesión nuevamente.",
	session.ReasonUnauthorized:      "Debes iniciar sesión para acceder a esta página.",
	session.ReasonSessionTimeout:    "Tu sesión alcanzó el tiempo máximo permitido. Por favor, inicia sesión nuevamente.",
	session.ReasonInactivityTimeout: "Tu sesión se cerró por inactividad. Por favor, inicia sesión nuevamente.",
}

// errorBanners are the role="alert" messages for /login?error=.
var errorBanners = map[string]string{
	session.LoginErrorUnauthorized:   "No tienes autorización para acceder a esta aplicación.",
	session.LoginErrorInvalidSession: "No se pudo validar tu sesión. Inténtalo de nuevo.",
	session.LoginErrorAccessDenied:   "Acceso denegado. Tu cuenta no tiene un rol asignado.",
}

const genericLoginError = "No se pudo iniciar sesión. Inténtalo de nuevo."

type loginPage struct {
	Title     string
	Reason    string
	Error     string
	SignInURL string
}

type errorPage struct {
	Title   string
	Message string
	Code    string
	Type    string
}

// PageHandlers serves the server-rendered pages.
type PageHandlers struct {
	Renderer *TemplateRenderer
	// SignInURL is the target of the login button.
	SignInURL string
}

// Login renders the sign-in page. GET /login?reason=&error=.
func (h *PageHandlers) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := loginPage{
		Title:     "Iniciar sesión",
		Reason:    reasonBanners[q.Get("reason")],
		SignInURL: h.SignInURL,
	}
	if code := q.Get("error"); code != "" {
		page.Error = errorBanners[code]
		if page.Error == "" {
			page.Error = genericLoginError
		}
	}
	h.Renderer.renderOrFail(w, http.StatusOK, "login", page)
}

// Error renders the error screen. GET /error?message=&code=&type=.
func (h *PageHandlers) Error(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := errorPage{
		Title:   "Error",
		Message: strings.TrimSpace(q.Get("message")),
		Code:    strings.TrimSpace(q.Get("code")),
		Type:    errorType(q.Get("type")),
	}
	if page.Message == "" {
		page.Message = DefaultErrorMessage
	}
	h.Renderer.renderOrFail(w, http.StatusOK, "error", page)
}

func errorType(raw string) string {
	switch raw {
	case "auth", "forbidden":
		return raw
	default:
		return "default"
	}
}
