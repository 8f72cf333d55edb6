package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/session"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
)

// Query keys of the flash banners shown after a form post.
const (
	queryNotice = "notice"
	queryError  = "error"
)

const foreignKeyMessage = "El registro relacionado no existe"

// pageFrame is embedded in every signed-in page.
type pageFrame struct {
	Title    string
	Identity domainauth.Identity
	Notice   string
	Error    string
}

func newFrame(r *http.Request, title string, identity domainauth.Identity) pageFrame {
	q := r.URL.Query()
	return pageFrame{Title: title, Identity: identity, Notice: q.Get(queryNotice), Error: q.Get(queryError)}
}

// pageResponder renders pages and the outcome of form posts.
type pageResponder struct {
	Renderer *TemplateRenderer
	Logger   *slog.Logger
}

func (p pageResponder) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// identity returns the gate-attached identity when require accepts it.
// Otherwise the request is sent to the forbidden screen.
func (p pageResponder) identity(
	w http.ResponseWriter,
	r *http.Request,
	require func(context.Context) (domainauth.Identity, error),
) (domainauth.Identity, bool) {
	identity, err := require(r.Context())
	if err != nil {
		target := session.PathError + "?" + url.Values{"message": {err.Error()}, "type": {"forbidden"}}.Encode()
		http.Redirect(w, r, target, http.StatusFound)
		return domainauth.Identity{}, false
	}
	return identity, true
}

func (p pageResponder) render(w http.ResponseWriter, name string, data any) {
	p.Renderer.renderOrFail(w, http.StatusOK, name, data)
}

// fail renders the error screen with the status err maps to.
func (p pageResponder) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		p.logger().ErrorContext(r.Context(), "page request failed", "path", r.URL.Path, "error", err)
	}
	page := errorPage{Title: "Error", Message: userMessage(err), Code: strconv.Itoa(status), Type: "default"}
	if status == http.StatusForbidden {
		page.Type = "forbidden"
	}
	p.Renderer.renderOrFail(w, status, "error", page)
}

// failForm sends rejected input back to the form at back. Missing records and
// server faults get the error screen.
func (p pageResponder) failForm(w http.ResponseWriter, r *http.Request, back string, err error) {
	switch apperrors.HTTPStatus(err) {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusConflict:
		http.Redirect(w, r, withQuery(back, queryError, userMessage(err)), http.StatusSeeOther)
	default:
		p.fail(w, r, err)
	}
}

// done finishes a successful form post.
func (p pageResponder) done(w http.ResponseWriter, r *http.Request, target, notice string) {
	http.Redirect(w, r, withQuery(target, queryNotice, notice), http.StatusSeeOther)
}

// userMessage is the text shown for err. Only client errors carry their own
// message; everything else is generic.
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return DefaultErrorMessage
	}
	switch appErr.Code {
	case apperrors.ErrCodeForeignKey:
		return foreignKeyMessage
	case apperrors.ErrCodeNotFound, apperrors.ErrCodeForbidden, apperrors.ErrCodeConflict, apperrors.ErrCodeValidation:
		return appErr.Message
	default:
		return DefaultErrorMessage
	}
}

func withQuery(path, key, value string) string {
	return path + "?" + url.Values{key: {value}}.Encode()
}
