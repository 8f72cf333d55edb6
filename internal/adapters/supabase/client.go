// Package supabase implements the identity provider port against the hosted
// auth REST API (GoTrue). Access tokens may also be verified locally when
// the project JWT secret is configured.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/ports"
)

var _ ports.IdentityProvider = (*Client)(nil)

// maxErrorBody caps how much of an error response is read into messages.
const maxErrorBody = 4 << 10

// authenticatedAudience is the audience the hosted service stamps on user tokens.
const authenticatedAudience = "authenticated"

// Config captures the connection settings for the auth API.
type Config struct {
	URL       string
	AnonKey   string
	JWTSecret string
	Timeout   time.Duration
	Client    *http.Client
}

// Client talks to the hosted auth API.
type Client struct {
	baseURL   string
	anonKey   string
	jwtSecret []byte
	client    *http.Client
	now       func() time.Time
}

// APIError is a non-2xx response from the auth API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("auth api %d: %s", e.Status, e.Message)
}

// NewClient builds an auth API client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("supabase url is required")
	}
	if u, err := url.Parse(base); err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("supabase url %q is not absolute", cfg.URL)
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, errors.New("supabase anon key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	var secret []byte
	if s := strings.TrimSpace(cfg.JWTSecret); s != "" {
		secret = []byte(s)
	}

	return &Client{
		baseURL:   base,
		anonKey:   strings.TrimSpace(cfg.AnonKey),
		jwtSecret: secret,
		client:    hc,
		now:       time.Now,
	}, nil
}

// SignInURL returns the hosted OAuth entry point for the Google provider,
// sending the browser back to redirectTo afterwards.
func (c *Client) SignInURL(redirectTo string) string {
	q := url.Values{}
	q.Set("provider", "google")
	q.Set("redirect_to", redirectTo)
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         userResponse `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

// GetUser validates accessToken. With a JWT secret configured the token is
// verified locally; otherwise the user endpoint is consulted.
func (c *Client) GetUser(ctx context.Context, accessToken string) (domainauth.Subject, error) {
	if accessToken == "" {
		return domainauth.Subject{}, errors.New("access token is required")
	}
	if c.jwtSecret != nil {
		return c.verifyLocally(accessToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return domainauth.Subject{}, fmt.Errorf("create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var user userResponse
	if err := c.do(req, &user); err != nil {
		return domainauth.Subject{}, err
	}
	if user.ID == "" {
		return domainauth.Subject{}, errors.New("auth api returned a user without id")
	}
	return domainauth.Subject{UserID: user.ID, Email: user.Email}, nil
}

// Refresh exchanges refreshToken for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	if refreshToken == "" {
		return domainauth.TokenPair{}, errors.New("refresh token is required")
	}

	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return domainauth.TokenPair{}, fmt.Errorf("encode refresh request: %w", err)
	}
	endpoint := c.baseURL + "/auth/v1/token?grant_type=refresh_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domainauth.TokenPair{}, fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var tok tokenResponse
	if err := c.do(req, &tok); err != nil {
		return domainauth.TokenPair{}, err
	}
	if tok.AccessToken == "" {
		return domainauth.TokenPair{}, errors.New("auth api returned no session")
	}

	pair := domainauth.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Subject:      domainauth.Subject{UserID: tok.User.ID, Email: tok.User.Email},
	}
	switch {
	case tok.ExpiresAt > 0:
		pair.ExpiresAt = time.Unix(tok.ExpiresAt, 0)
	case tok.ExpiresIn > 0:
		pair.ExpiresAt = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return pair, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode auth api response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	var body errorResponse
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Code = firstNonEmpty(body.ErrorCode, body.Error)
		apiErr.Message = firstNonEmpty(body.ErrorDescription, body.Msg, body.Message)
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// accessClaims is the subset of the hosted access token claims we read.
type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Client) verifyLocally(accessToken string) (domainauth.Subject, error) {
	token, err := jwt.ParseWithClaims(accessToken, &accessClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(authenticatedAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return domainauth.Subject{}, fmt.Errorf("verify access token: %w", err)
	}
	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return domainauth.Subject{}, errors.New("invalid access token")
	}
	if claims.Subject == "" {
		return domainauth.Subject{}, errors.New("access token has no subject")
	}
	return domainauth.Subject{UserID: claims.Subject, Email: claims.Email}, nil
}
