package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/fieldops/installer-portal/internal/domain/session"
	"github.com/fieldops/installer-portal/internal/ports"
	"github.com/fieldops/installer-portal/internal/service"
)

// RequestObserver receives one call per served request.
type RequestObserver interface {
	ObserveRequest(method string, status int, elapsed time.Duration)
}

// Logging returns a middleware that logs HTTP requests and responses.
// observer may be nil.
func Logging(logger *slog.Logger, observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)
			logger.InfoContext(r.Context(), "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", elapsed),
			)
			if observer != nil {
				observer.ObserveRequest(r.Method, ww.status, elapsed)
			}
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *respWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Recover returns a middleware that recovers from handler panics. Browser
// requests are sent to the error screen; API requests get a JSON 500.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "panic",
					slog.Any("error", rec),
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method),
					slog.String("stack", string(debug.Stack())))
				if service.ClassifyPath(r.URL.Path) == service.PathPassthrough {
					WriteError(w, ErrorParams{Code: http.StatusInternalServerError, Message: "Internal server error"})
					return
				}
				http.Redirect(w, r, session.ErrorURL("Ha ocurrido un error inesperado"), http.StatusFound)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Gate is the per-request session decision.
type Gate interface {
	Evaluate(ctx context.Context, path string, cookies ports.CookieStore) service.Decision
}

// SessionGate runs gate for every request. Redirect decisions end the
// request; allowed requests continue with the identity in their context.
func SessionGate(gate Gate, cookies CookieSettings) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := gate.Evaluate(r.Context(), r.URL.Path, NewRequestCookies(w, r, cookies))
			switch d.Outcome {
			case service.OutcomeRedirect:
				http.Redirect(w, r, d.Location, http.StatusFound)
				return
			case service.OutcomeAllow:
				r = r.WithContext(SetIdentityInContext(r.Context(), d.Identity))
			case service.OutcomeSkip:
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares so the first one is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
