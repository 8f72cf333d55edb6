package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/session"
	"github.com/fieldops/installer-portal/internal/ports"
	"github.com/fieldops/installer-portal/internal/service"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	SupportsCodeFlow() bool
	BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.LoginResult, error)
	EstablishSession(ctx context.Context, pair domainauth.TokenPair) (*service.LoginResult, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc     AuthServiceInterface
	Cookies CookieSettings
	// CallbackURL is the absolute /auth/callback URL registered with the provider.
	CallbackURL string
	Renderer    *TemplateRenderer
	Logger      *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// BeginLogin starts the code flow. GET /api/auth/login.
func (h *AuthHandlers) BeginLogin(w http.ResponseWriter, r *http.Request) {
	if !h.Svc.SupportsCodeFlow() {
		http.Redirect(w, r, session.PathLogin, http.StatusFound)
		return
	}

	result, err := h.Svc.BeginLogin(r.Context(), h.CallbackURL)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin login failed", "error", err)
		http.Redirect(w, r, session.LoginErrorURL(session.LoginErrorUnauthorized), http.StatusFound)
		return
	}

	cookies := NewRequestCookies(w, r, h.Cookies)
	cookies.Set(cookieOAuthState, result.State, ports.CookieOptions{MaxAge: oauthCookieTTL})
	cookies.Set(cookieOAuthNonce, result.Nonce, ports.CookieOptions{MaxAge: oauthCookieTTL})

	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback finishes a login. GET /auth/callback.
//
// Providers that own the login screen deliver tokens in the URL fragment,
// which never reaches the server, so the page posts them to set-session.
// Code-flow providers deliver ?code=&state= and are exchanged here.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	if !h.Svc.SupportsCodeFlow() {
		h.Renderer.renderOrFail(w, http.StatusOK, "callback", struct{ Title string }{Title: "Iniciando sesión"})
		return
	}

	cookies := NewRequestCookies(w, r, h.Cookies)
	target := h.completeLogin(r, cookies)
	cookies.Delete(cookieOAuthState)
	cookies.Delete(cookieOAuthNonce)
	http.Redirect(w, r, target, http.StatusFound)
}

// completeLogin exchanges the code and returns where to send the browser.
func (h *AuthHandlers) completeLogin(r *http.Request, cookies ports.CookieStore) string {
	ctx := r.Context()
	q := r.URL.Query()
	if idpErr := q.Get("error"); idpErr != "" {
		h.logger().WarnContext(ctx, "provider returned an error", "error", idpErr, "description", q.Get("error_description"))
		return session.LoginErrorURL(session.LoginErrorAccessDenied)
	}

	state := q.Get("state")
	storedState, _ := cookies.Get(cookieOAuthState)
	nonce, hasNonce := cookies.Get(cookieOAuthNonce)
	if state == "" || storedState != state || !hasNonce {
		h.logger().WarnContext(ctx, "callback state mismatch")
		return session.LoginErrorURL(session.LoginErrorInvalidSession)
	}

	result, err := h.Svc.CompleteLogin(ctx, service.CompleteLoginInput{
		Code:  q.Get("code"),
		State: state,
		Nonce: nonce,
	})
	if err != nil {
		h.logger().WarnContext(ctx, "login completion failed", "kind", domainauth.KindOf(err), "error", err)
		return session.LoginErrorURL(session.LoginErrorUnauthorized)
	}

	startSession(cookies, result.Tokens)
	h.logger().InfoContext(ctx, "login completed", "user_id", result.Identity.ID, "role", result.Identity.Role)
	return "/"
}

type setSessionRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type setSessionResponse struct {
	RedirectURL string `json:"redirectUrl"`
}

// SetSession stores the token pair posted by the callback page.
// POST /api/auth/set-session.
func (h *AuthHandlers) SetSession(w http.ResponseWriter, r *http.Request) {
	var req setSessionRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, Message: "Missing tokens"})
		return
	}

	pair := domainauth.TokenPair{
		AccessToken:  strings.TrimSpace(req.AccessToken),
		RefreshToken: strings.TrimSpace(req.RefreshToken),
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, Message: "Missing tokens"})
		return
	}

	ctx := r.Context()
	cookies := NewRequestCookies(w, r, h.Cookies)
	result, err := h.Svc.EstablishSession(ctx, pair)
	switch {
	case errors.Is(err, service.ErrMissingTokens):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, Message: "Missing tokens"})
		return
	case domainauth.KindOf(err) != "":
		h.logger().InfoContext(ctx, "set-session rejected", "kind", domainauth.KindOf(err), "error", err)
		service.ClearSessionCookies(cookies)
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, Message: "Invalid session"})
		return
	case err != nil:
		h.logger().ErrorContext(ctx, "set-session failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, Message: "Internal server error"})
		return
	}

	startSession(cookies, result.Tokens)
	redirect := session.PathInstaller
	if result.Identity.IsAdmin() {
		redirect = session.PathAdmin
	}
	WriteJSON(w, http.StatusOK, setSessionResponse{RedirectURL: redirect})
}

// Logout clears the session cookies. GET|POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	service.ClearSessionCookies(NewRequestCookies(w, r, h.Cookies))
	status := http.StatusFound
	if r.Method == http.MethodPost {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, session.PathLogin, status)
}

// startSession stores a freshly issued pair and drops timing cookies left by
// an earlier session, so the gate starts a new clock on the next request.
func startSession(cookies ports.CookieStore, pair domainauth.TokenPair) {
	service.StoreTokenPair(cookies, pair)
	cookies.Delete(session.CookieSessionCreated)
	cookies.Delete(session.CookieLastActivity)
}
