package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/installer-portal/internal/domain/session"
)

func TestPageHandlers_LoginBanners(t *testing.T) {
	h := &PageHandlers{Renderer: requireRenderer(t), SignInURL: "/api/auth/login"}

	tests := []struct {
		name     string
		query    string
		want     []string
		notWant  []string
		wantRole string
	}{
		{
			name:    "plain",
			want:    []string{`href="/api/auth/login"`, "Continuar con Google"},
			notWant: []string{`role="status"`, `role="alert"`},
		},
		{
			name:     "inactivity reason",
			query:    "?reason=" + session.ReasonInactivityTimeout,
			want:     []string{"por inactividad"},
			wantRole: `role="status"`,
		},
		{
			name:     "absolute timeout reason",
			query:    "?reason=" + session.ReasonSessionTimeout,
			want:     []string{"tiempo máximo"},
			wantRole: `role="status"`,
		},
		{
			name:    "unknown reason shows nothing",
			query:   "?reason=bogus",
			notWant: []string{`role="status"`},
		},
		{
			name:     "access denied error",
			query:    "?error=" + session.LoginErrorAccessDenied,
			want:     []string{"Acceso denegado"},
			wantRole: `role="alert"`,
		},
		{
			name:     "unknown error falls back",
			query:    "?error=weird",
			want:     []string{genericLoginError},
			wantRole: `role="alert"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Login(rec, httptest.NewRequest(http.MethodGet, session.PathLogin+tt.query, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, contentTypeHTML, rec.Header().Get("Content-Type"))
			body := rec.Body.String()
			assert.True(t, ContainsAll(body, tt.want), body)
			if tt.wantRole != "" {
				assert.Contains(t, body, tt.wantRole)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, body, s)
			}
		})
	}
}

func TestPageHandlers_Error(t *testing.T) {
	h := &PageHandlers{Renderer: requireRenderer(t)}

	t.Run("default message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Error(rec, httptest.NewRequest(http.MethodGet, session.PathError, nil))

		body := rec.Body.String()
		assert.Contains(t, body, DefaultErrorMessage)
		assert.Contains(t, body, "card-default")
		assert.Contains(t, body, `role="alert"`)
	})

	t.Run("message code and type", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Error(rec, httptest.NewRequest(http.MethodGet, session.PathError+"?message=Sin+acceso&code=403&type=forbidden", nil))

		body := rec.Body.String()
		assert.True(t, ContainsAll(body, []string{"Sin acceso", "403", "card-forbidden"}), body)
	})

	t.Run("message is escaped", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Error(rec, httptest.NewRequest(http.MethodGet, session.PathError+"?message=%3Cscript%3E&type=evil", nil))

		body := rec.Body.String()
		assert.NotContains(t, body, "<script>")
		assert.Contains(t, body, "card-default")
	})
}
