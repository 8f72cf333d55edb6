// Package httpx is the HTTP transport of the installer portal: routing,
// middleware, browser pages and JSON endpoints.
package httpx

import (
	"net/http"
	"time"

	"github.com/fieldops/installer-portal/internal/ports"
)

// CookieSettings holds the cookie attributes fixed by deployment.
type CookieSettings struct {
	Domain string
	// Secure is only true when APP_ENV=production.
	Secure bool
}

// RequestCookies adapts one request/response pair to ports.CookieStore.
// Every cookie is path "/", HttpOnly and SameSite=Lax.
type RequestCookies struct {
	w        http.ResponseWriter
	r        *http.Request
	settings CookieSettings
}

var _ ports.CookieStore = (*RequestCookies)(nil)

// NewRequestCookies binds a cookie store to w and r.
func NewRequestCookies(w http.ResponseWriter, r *http.Request, settings CookieSettings) *RequestCookies {
	return &RequestCookies{w: w, r: r, settings: settings}
}

// Get reads a cookie from the incoming request. Empty values count as absent.
func (c *RequestCookies) Get(name string) (string, bool) {
	ck, err := c.r.Cookie(name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

func (c *RequestCookies) Set(name, value string, opts ports.CookieOptions) {
	http.SetCookie(c.w, c.cookie(name, value, int(opts.MaxAge/time.Second)))
}

// Delete expires a cookie using the same attributes it was written with.
func (c *RequestCookies) Delete(name string) {
	ck := c.cookie(name, "", -1)
	ck.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(c.w, ck)
}

func (c *RequestCookies) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.settings.Domain,
		HttpOnly: true,
		Secure:   c.settings.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}
