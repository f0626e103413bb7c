package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pollpass/vigil/core"
	"github.com/pollpass/vigil/internal/lang"
	"github.com/pollpass/vigil/service"
)

// Headers injected for downstream handlers after the route guard has
// validated the session. Downstream code may trust these without
// re-decoding the token.
const (
	HeaderSubjectID     = "X-User-Id"
	HeaderWalletAddress = "X-Wallet-Address"
	HeaderLanguage      = "X-Preferred-Language"
)

// GuardConfig configures the route guard's redirect targets and the
// paths it never gates.
type GuardConfig struct {
	SignInPath       string
	RegistrationPath string
	PublicPrefixes   []string
	APIPrefix        string
}

// DefaultGuardConfig returns the standard guard configuration.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		SignInPath:       "/login",
		RegistrationPath: "/register",
		PublicPrefixes: []string{
			"/auth/",
			"/login",
			"/register",
			"/welcome",
			"/static/",
			"/favicon.ico",
			"/healthz",
		},
		APIPrefix: "/api/",
	}
}

// RouteGuard intercepts every request and decides allow or redirect from
// token validity and registration state. Each request is judged
// independently; there is no cross-request state here.
func RouteGuard(authService *service.AuthService, cfg GuardConfig, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "route_guard")

	return func(c *gin.Context) {
		preferred := lang.FromRequest(c.Request)
		c.Header(HeaderLanguage, preferred)

		path := c.Request.URL.Path

		if isPublic(path, cfg.PublicPrefixes) {
			c.Next()
			return
		}

		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			c.Redirect(http.StatusFound, cfg.SignInPath)
			c.Abort()
			return
		}

		status, err := authService.SessionStatus(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, core.ErrUnauthorized) || errors.Is(err, core.ErrNotFound) {
				// A stale or corrupt token must not linger.
				clearSessionCookies(c)
				logger.Info("rejected session", "path", path, "error", err)
				c.Redirect(http.StatusFound, cfg.SignInPath)
				c.Abort()
				return
			}

			// A directory blip is not a sign-out: the cookies stay and
			// the request fails transiently.
			logger.Error("session check unavailable", "path", path, "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Session check unavailable"})
			return
		}

		// Half-registered identities reach nothing but the registration
		// page. The address travels along so the registration step does
		// not have to re-derive it.
		if !status.Registered && !matchesPath(path, cfg.RegistrationPath) {
			target := cfg.RegistrationPath + "?userId=" + url.QueryEscape(status.Address)
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}

		if strings.HasPrefix(path, cfg.APIPrefix) {
			c.Request.Header.Set(HeaderSubjectID, authService.SubjectFromToken(token))
			c.Request.Header.Set(HeaderWalletAddress, status.Address)
			c.Request.Header.Set(HeaderLanguage, preferred)
		}

		c.Next()
	}
}

// matchesPath reports whether path is p itself or lives under it. A bare
// prefix match would let /registry-export ride on /register.
func matchesPath(path, p string) bool {
	if strings.HasSuffix(p, "/") {
		return strings.HasPrefix(path, p)
	}
	return path == p || strings.HasPrefix(path, p+"/")
}

func isPublic(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if matchesPath(path, prefix) {
			return true
		}
	}
	return false
}

// RequestLogger logs each request with latency and status.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http_request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
