package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	authmocks "github.com/fieldops/installer-portal/internal/mocks/auth"
	"github.com/fieldops/installer-portal/internal/mocks/fieldwork"
	"github.com/fieldops/installer-portal/internal/ports"
	"github.com/fieldops/installer-portal/internal/service"
)

var (
	adminIdentity = domainauth.Identity{
		ID:       "00000000-0000-0000-0000-0000000000aa",
		Email:    "ana@example.com",
		FullName: "Ana Admin",
		Role:     domainauth.RoleAdmin,
	}
	installerIdentity = domainauth.Identity{
		ID:       "00000000-0000-0000-0000-0000000000bb",
		Email:    "ivan@example.com",
		FullName: "Iván Instalador",
		Role:     domainauth.RoleInstaller,
	}
)

// mockAuthService is a test double for service.AuthService.
type mockAuthService struct {
	codeFlow             bool
	beginLoginFunc       func(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	completeLoginFunc    func(ctx context.Context, input service.CompleteLoginInput) (*service.LoginResult, error)
	establishSessionFunc func(ctx context.Context, pair domainauth.TokenPair) (*service.LoginResult, error)
	authenticateFunc     func(ctx context.Context, accessToken string) (domainauth.Subject, error)
}

func (m *mockAuthService) SupportsCodeFlow() bool { return m.codeFlow }

func (m *mockAuthService) BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error) {
	if m.beginLoginFunc != nil {
		return m.beginLoginFunc(ctx, redirectURL)
	}
	return &service.BeginLoginResult{
		AuthURL: "https://idp.example.com/authorize?state=test-state",
		State:   "test-state",
		Nonce:   "test-nonce",
	}, nil
}

func (m *mockAuthService) CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.LoginResult, error) {
	if m.completeLoginFunc != nil {
		return m.completeLoginFunc(ctx, input)
	}
	return &service.LoginResult{
		Identity: installerIdentity,
		Tokens:   domainauth.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"},
	}, nil
}

func (m *mockAuthService) EstablishSession(ctx context.Context, pair domainauth.TokenPair) (*service.LoginResult, error) {
	if m.establishSessionFunc != nil {
		return m.establishSessionFunc(ctx, pair)
	}
	return &service.LoginResult{Identity: installerIdentity, Tokens: pair}, nil
}

func (m *mockAuthService) Authenticate(ctx context.Context, accessToken string) (domainauth.Subject, error) {
	if m.authenticateFunc != nil {
		return m.authenticateFunc(ctx, accessToken)
	}
	if accessToken == "" {
		return domainauth.Subject{}, domainauth.ErrNoSession
	}
	return domainauth.Subject{UserID: installerIdentity.ID}, nil
}

// gateFunc adapts a function to the Gate interface.
type gateFunc func(ctx context.Context, path string, cookies ports.CookieStore) service.Decision

func (f gateFunc) Evaluate(ctx context.Context, path string, cookies ports.CookieStore) service.Decision {
	return f(ctx, path, cookies)
}

func requireRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	tr, err := NewTemplateRenderer(TemplateRendererConfig{})
	require.NoError(t, err)
	return tr
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if s, ok := payload.(string); ok {
		body.WriteString(s)
	} else {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// responseCookies indexes Set-Cookie headers by name; later headers win.
func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

// ContainsAll checks if a string contains all the given substrings.
func ContainsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

// workStores backs WorkServices with in-memory stores.
type workStores struct {
	installations *fieldwork.MemoryInstallationStore
	materials     *fieldwork.MemoryMaterialStore
	users         *authmocks.MemoryUserStore
}

func newWorkStores(clock ports.Clock, users *authmocks.MemoryUserStore) workStores {
	insts := fieldwork.NewMemoryInstallationStore(clock, installerIdentity)
	return workStores{
		installations: insts,
		materials:     fieldwork.NewMemoryMaterialStore(insts),
		users:         users,
	}
}

func (s workStores) services(clock ports.Clock) WorkServices {
	stores := service.WorkStores{Installations: s.installations, Materials: s.materials}
	return WorkServices{
		Installations: service.NewInstallationService(service.InstallationServiceOptions{Stores: stores}),
		Users:         service.NewUserAdminService(service.UserAdminServiceOptions{Users: s.users}),
		FieldWork: service.NewFieldWorkService(service.FieldWorkServiceOptions{
			Stores:   stores,
			Calendar: service.WorkCalendar{Clock: clock},
		}),
	}
}

// serveAs runs req through h with identity attached, as the gate would.
func serveAs(h http.Handler, identity domainauth.Identity, req *http.Request) *httptest.ResponseRecorder {
	req = req.WithContext(SetIdentityInContext(req.Context(), identity))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
