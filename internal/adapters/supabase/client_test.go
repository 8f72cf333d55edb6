package supabase

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAnonKey = "anon-key"

func newTestClient(t *testing.T, handler http.Handler, secret string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{URL: srv.URL + "/", AnonKey: testAnonKey, JWTSecret: secret})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{AnonKey: "k"})
	assert.Error(t, err)
	_, err = NewClient(Config{URL: "project.supabase.co", AnonKey: "k"})
	assert.Error(t, err)
	_, err = NewClient(Config{URL: "https://project.supabase.co"})
	assert.Error(t, err)
}

func TestClient_SignInURL(t *testing.T) {
	c, err := NewClient(Config{URL: "https://project.supabase.co", AnonKey: testAnonKey})
	require.NoError(t, err)

	got := c.SignInURL("http://localhost:8080/auth/callback")

	assert.Equal(t,
		"https://project.supabase.co/auth/v1/authorize?provider=google&redirect_to=http%3A%2F%2Flocalhost%3A8080%2Fauth%2Fcallback",
		got)
}

func TestClient_GetUser(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, testAnonKey, r.Header.Get("apikey"))
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":401,"error_code":"bad_jwt","msg":"invalid JWT: token is expired"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"11111111-1111-1111-1111-111111111111","email":"ana@example.com","aud":"authenticated"}`))
	}), "")

	subject, err := c.GetUser(t.Context(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", subject.UserID)
	assert.Equal(t, "ana@example.com", subject.Email)

	_, err = c.GetUser(t.Context(), "expired-token")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "bad_jwt", apiErr.Code)
	assert.Equal(t, "invalid JWT: token is expired", apiErr.Message)

	_, err = c.GetUser(t.Context(), "")
	assert.Error(t, err)
}

func TestClient_Refresh(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		assert.Equal(t, testAnonKey, r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["refresh_token"] != "valid-refresh" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid Refresh Token: Refresh Token Not Found"}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"access_token":"new-access",
			"refresh_token":"new-refresh",
			"expires_in":3600,
			"expires_at":1700003600,
			"user":{"id":"u-1","email":"ana@example.com"}
		}`))
	}), "")

	pair, err := c.Refresh(t.Context(), "valid-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", pair.AccessToken)
	assert.Equal(t, "new-refresh", pair.RefreshToken)
	assert.Equal(t, "u-1", pair.Subject.UserID)
	assert.Equal(t, time.Unix(1700003600, 0), pair.ExpiresAt)

	_, err = c.Refresh(t.Context(), "revoked")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_grant", apiErr.Code)
	assert.Contains(t, apiErr.Message, "Refresh Token Not Found")
}

func TestClient_Refresh_NonJSONError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), "")

	_, err := c.Refresh(t.Context(), "r")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
}

func signHS256(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestClient_GetUser_LocalVerification(t *testing.T) {
	const secret = "super-secret-jwt-key"
	now := time.Unix(1_700_000_000, 0)

	c := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("local verification must not call the API")
	}), secret)
	c.now = func() time.Time { return now }

	valid := func() accessClaims {
		return accessClaims{
			Email: "ana@example.com",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u-1",
				Audience:  jwt.ClaimStrings{"authenticated"},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	subject, err := c.GetUser(t.Context(), signHS256(t, secret, valid()))
	require.NoError(t, err)
	assert.Equal(t, "u-1", subject.UserID)
	assert.Equal(t, "ana@example.com", subject.Email)

	tests := []struct {
		name  string
		token func() string
	}{
		{name: "expired", token: func() string {
			cl := valid()
			cl.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
			return signHS256(t, secret, cl)
		}},
		{name: "wrong secret", token: func() string { return signHS256(t, "other", valid()) }},
		{name: "wrong audience", token: func() string {
			cl := valid()
			cl.Audience = jwt.ClaimStrings{"anon"}
			return signHS256(t, secret, cl)
		}},
		{name: "missing expiry", token: func() string {
			cl := valid()
			cl.ExpiresAt = nil
			return signHS256(t, secret, cl)
		}},
		{name: "missing subject", token: func() string {
			cl := valid()
			cl.Subject = ""
			return signHS256(t, secret, cl)
		}},
		{name: "unsigned", token: func() string {
			tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, valid()).SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)
			return tok
		}},
		{name: "garbage", token: func() string { return "not-a-jwt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.GetUser(t.Context(), tt.token())
			assert.Error(t, err)
		})
	}
}
