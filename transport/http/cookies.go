package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pollpass/vigil/core"
	"github.com/pollpass/vigil/internal/lang"
)

// Cookie names for the session store. The language cookie is owned by the
// UI and is never auth state; the rest are cleared together on teardown.
const (
	SessionCookie          = "vigil_session"
	NonceCookie            = "siwe_nonce"
	RegistrationCookie     = "registration_status"
	SiweVerifiedCookie     = "siwe_verified"
	IdentityVerifiedCookie = "identity_verified"
)

const (
	RegistrationPending  = "pending"
	RegistrationComplete = "complete"
)

const (
	defaultSessionCookieTTL = 24 * time.Hour
	defaultNonceCookieTTL   = 10 * time.Minute
	languageCookieTTL       = 24 * time.Hour
)

// setLanguageCookie persists the resolved language preference. Not
// httpOnly, the UI reads it directly.
func setLanguageCookie(c *gin.Context, code string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     lang.CookieName,
		Value:    code,
		Path:     "/",
		MaxAge:   int(languageCookieTTL.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

// setNonceCookie binds the issued nonce to the browser for one sign-in
// attempt. A new nonce overwrites any previous one.
func setNonceCookie(c *gin.Context, nonce string, ttl time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     NonceCookie,
		Value:    nonce,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// setSessionCookies persists the session token and the auxiliary flag
// cookies derived from the session status.
func setSessionCookies(c *gin.Context, token string, status *core.SessionStatus, siweVerified bool, ttl time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setFlagCookies(c, status, siweVerified, ttl)
}

// setFlagCookies re-writes the plain auxiliary cookies so they track the
// reconciled session status. They are a cache for the UI and the route
// guard; the signed token stays authoritative.
func setFlagCookies(c *gin.Context, status *core.SessionStatus, siweVerified bool, ttl time.Duration) {
	registration := RegistrationPending
	if status.Registered {
		registration = RegistrationComplete
	}
	setPlainCookie(c, RegistrationCookie, registration, ttl)
	setPlainCookie(c, SiweVerifiedCookie, boolString(siweVerified), ttl)
	setPlainCookie(c, IdentityVerifiedCookie, boolString(status.Verified), ttl)
}

func setPlainCookie(c *gin.Context, name, value string, ttl time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAuthCookies tears down every auth-related cookie with an explicit
// past-dated Expires. Some clients only honor expiry rewrites reliably,
// so deletion semantics alone are not trusted. The language cookie is
// deliberately left alone.
func clearAuthCookies(c *gin.Context) {
	for _, name := range []string{SessionCookie, NonceCookie, RegistrationCookie, SiweVerifiedCookie, IdentityVerifiedCookie} {
		expireCookie(c, name)
	}
}

// clearSessionCookies removes the session token and registration cookies
// after a failed token verification, so a stale token does not linger.
func clearSessionCookies(c *gin.Context) {
	expireCookie(c, SessionCookie)
	expireCookie(c, RegistrationCookie)
}

func clearNonceCookie(c *gin.Context) {
	expireCookie(c, NonceCookie)
}

func expireCookie(c *gin.Context, name string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
