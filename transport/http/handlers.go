package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pollpass/vigil/core"
	"github.com/pollpass/vigil/internal/lang"
	"github.com/pollpass/vigil/ports"
	"github.com/pollpass/vigil/service"
)

// AuthHandlers contains HTTP handlers for the session lifecycle endpoints
type AuthHandlers struct {
	authService *service.AuthService
	logger      *slog.Logger
	signInPath  string

	sessionTTL  time.Duration
	nonceTTL    time.Duration
	proofAction string
}

// HandlerOption adjusts optional handler settings.
type HandlerOption func(*AuthHandlers)

// WithSessionTTL overrides the session cookie lifetime. Non-positive
// values keep the default.
func WithSessionTTL(ttl time.Duration) HandlerOption {
	return func(h *AuthHandlers) {
		if ttl > 0 {
			h.sessionTTL = ttl
		}
	}
}

// WithNonceTTL overrides the nonce cookie lifetime. Non-positive values
// keep the default.
func WithNonceTTL(ttl time.Duration) HandlerOption {
	return func(h *AuthHandlers) {
		if ttl > 0 {
			h.nonceTTL = ttl
		}
	}
}

// WithProofAction sets the action used for proof verification when the
// request does not name one.
func WithProofAction(action string) HandlerOption {
	return func(h *AuthHandlers) {
		if action != "" {
			h.proofAction = action
		}
	}
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, logger *slog.Logger, signInPath string, opts ...HandlerOption) *AuthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &AuthHandlers{
		authService: authService,
		logger:      logger.With("component", "http"),
		signInPath:  signInPath,
		sessionTTL:  defaultSessionCookieTTL,
		nonceTTL:    defaultNonceCookieTTL,
		proofAction: "verify-human",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Nonce issues a fresh single-use nonce bound to the browser via an
// httpOnly cookie. Issuing a new nonce supersedes any previous one.
func (h *AuthHandlers) Nonce(c *gin.Context) {
	preferred := lang.FromRequest(c.Request)
	setLanguageCookie(c, preferred)

	challenge, err := h.authService.IssueNonce()
	if err != nil {
		h.logger.Error("failed to issue nonce", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue nonce"})
		return
	}

	setNonceCookie(c, challenge.Nonce, h.nonceTTL)
	c.JSON(http.StatusOK, gin.H{"nonce": challenge.Nonce})
}

// CompleteSIWE verifies a signed sign-in statement against the stored
// nonce. The language cookie is re-set on every exit path so an auth
// failure never reverts the UI language.
func (h *AuthHandlers) CompleteSIWE(c *gin.Context) {
	preferred := lang.FromRequest(c.Request)
	setLanguageCookie(c, preferred)

	var req struct {
		Payload struct {
			Message   string `json:"message" binding:"required"`
			Signature string `json:"signature" binding:"required"`
		} `json:"payload" binding:"required"`
		Nonce string `json:"nonce" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "isValid": false, "message": "Invalid request"})
		return
	}

	storedNonce, err := c.Cookie(NonceCookie)
	if err != nil {
		storedNonce = ""
	}

	address, err := h.authService.CompleteSignIn(c.Request.Context(), req.Payload.Message, req.Payload.Signature, storedNonce, req.Nonce)
	if err != nil {
		status := http.StatusBadRequest
		message := "Invalid signature"

		switch {
		case errors.Is(err, core.ErrInvalidNonce):
			message = "Invalid nonce"
		case errors.Is(err, core.ErrInvalidProof):
			message = "Invalid signature"
		default:
			status = http.StatusInternalServerError
			message = "Sign-in failed"
			h.logger.Error("sign-in completion failed", "error", err)
		}

		c.JSON(status, gin.H{"status": "error", "isValid": false, "message": message})
		return
	}

	// The nonce is consumed on success and must not validate again.
	clearNonceCookie(c)

	c.JSON(http.StatusOK, gin.H{"status": "success", "isValid": true, "address": address})
}

// SessionStatus reports the reconciled session state. The auxiliary flag
// cookies are re-written to match, keeping the cached view consistent.
func (h *AuthHandlers) SessionStatus(c *gin.Context) {
	preferred := lang.FromRequest(c.Request)
	setLanguageCookie(c, preferred)

	token, err := c.Cookie(SessionCookie)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No session"})
		return
	}

	status, err := h.authService.SessionStatus(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrUnauthorized):
			clearSessionCookies(c)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
		case errors.Is(err, core.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			h.logger.Error("session status check failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Session check failed"})
		}
		return
	}

	siwe, _ := c.Cookie(SiweVerifiedCookie)
	setFlagCookies(c, status, siwe == "true", h.sessionTTL)

	c.JSON(http.StatusOK, status)
}

// CreateSession issues the session token and cookies for a wallet address
// whose signature was just verified.
func (h *AuthHandlers) CreateSession(c *gin.Context) {
	preferred := lang.FromRequest(c.Request)
	setLanguageCookie(c, preferred)

	var req struct {
		WalletAddress  string `json:"walletAddress" binding:"required"`
		IsSiweVerified bool   `json:"isSiweVerified"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, status, err := h.authService.CreateSession(c.Request.Context(), req.WalletAddress, req.IsSiweVerified)
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
			return
		}
		h.logger.Error("session creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	setSessionCookies(c, token, status, req.IsSiweVerified, h.sessionTTL)
	c.JSON(http.StatusOK, status)
}

// VerifyProof runs the optional proof-of-personhood upgrade. Requires a
// valid session; the updated verification flag is observed by the client
// on its next session-status check, not pushed.
func (h *AuthHandlers) VerifyProof(c *gin.Context) {
	preferred := lang.FromRequest(c.Request)
	setLanguageCookie(c, preferred)

	token, err := c.Cookie(SessionCookie)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "No session"})
		return
	}

	var req struct {
		Payload ports.ProofPayload `json:"payload" binding:"required"`
		Action  string             `json:"action"`
		Signal  string             `json:"signal"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	action := req.Action
	if action == "" {
		action = h.proofAction
	}

	if err := h.authService.VerifyIdentity(c.Request.Context(), token, req.Payload, action, req.Signal); err != nil {
		switch {
		case errors.Is(err, core.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid session"})
		case errors.Is(err, core.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		case errors.Is(err, core.ErrInvalidProof):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			h.logger.Error("proof verification failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Verification failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Logout tears down every auth cookie and redirects to the sign-in page.
// It is idempotent and never requires a valid session. 303 forces the
// browser to re-issue as GET regardless of the original method.
func (h *AuthHandlers) Logout(c *gin.Context) {
	preferred := lang.FromRequest(c.Request)

	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		h.authService.Logout(c.Request.Context(), h.authService.AddressFromToken(token))
	}

	clearAuthCookies(c)

	// Language preference survives teardown; re-set as the last cookie op.
	setLanguageCookie(c, preferred)

	c.Redirect(http.StatusSeeOther, h.signInPath)
}

// Me returns the identity derived by the route guard for API callers.
func (h *AuthHandlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"subjectId": c.GetHeader(HeaderSubjectID),
		"address":   c.GetHeader(HeaderWalletAddress),
		"language":  c.GetHeader(HeaderLanguage),
	})
}

// Healthz reports process liveness.
func (h *AuthHandlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
