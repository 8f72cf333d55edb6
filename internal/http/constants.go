package httpx

import "time"

const (
	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html; charset=utf-8"

	maxJSONBody = 64 << 10
)

// Short-lived cookies carrying the code-flow state between /api/auth/login
// and /auth/callback.
const (
	cookieOAuthState = "oauth_state"
	cookieOAuthNonce = "oauth_nonce"
	oauthCookieTTL   = 10 * time.Minute
)

// Routes served outside the gate.
const (
	pathBeginLogin  = "/api/auth/login"
	pathSetSession  = "/api/auth/set-session"
	pathSubscribe   = "/api/push/subscribe"
	pathUnsubscribe = "/api/push/unsubscribe"
	pathHealth      = "/healthz"
)

// Pages inside the role areas. The gate only lets admins under /admin and
// installers under /installer.
const (
	pathAdminInstallations     = "/admin/installations"
	pathAdminUsers             = "/admin/users"
	pathInstallerInstallations = "/installer/installations"
	pathInstallerMaterials     = "/installer/materials"
)

// maxFormBody caps urlencoded form posts.
const maxFormBody = 64 << 10
