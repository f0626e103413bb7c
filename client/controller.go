// Package client implements the session controller that drives the
// wallet sign-in sequence against the auth service and keeps its local
// belief about session and verification state reconciled with the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/pollpass/vigil/core"
)

// Signer is the external wallet. It signs the sign-in statement with the
// user's private key, outside this system.
type Signer interface {
	SignMessage(ctx context.Context, message string) (signature string, err error)
}

// Paths on which revalidation is suppressed to avoid redirect loops
// during onboarding.
var onboardingPaths = []string{"/login", "/register", "/welcome"}

const (
	defaultInterval      = 60 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second
)

// Controller performs the sign-in sequence and periodically revalidates
// the session. One controller instance belongs to one browser session.
type Controller struct {
	baseURL string
	http    *http.Client
	signer  Signer
	logger  *slog.Logger

	interval      time.Duration
	retryAttempts int
	retryDelay    time.Duration

	// onRedirect is invoked when the controller decides the user must
	// move, e.g. to registration or back to sign-in after a 401.
	onRedirect func(target string)

	mu       sync.Mutex
	status   core.SessionStatus
	path     string
	applied  uint64
	nextSeq  uint64
	stopOnce sync.Once
	stop     chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithInterval overrides the revalidation interval.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// WithRetry overrides the status-check retry budget.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Controller) {
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// WithRedirect sets the navigation callback.
func WithRedirect(fn func(target string)) Option {
	return func(c *Controller) { c.onRedirect = fn }
}

// WithHTTPClient overrides the HTTP client. The client must carry a
// cookie jar; the session lives in cookies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Controller) { c.http = hc }
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a session controller for the given service URL
// and wallet signer.
func NewController(baseURL string, signer Signer, opts ...Option) *Controller {
	c := &Controller{
		baseURL:       strings.TrimRight(baseURL, "/"),
		signer:        signer,
		logger:        slog.Default().With("component", "session_controller"),
		interval:      defaultInterval,
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
		onRedirect:    func(string) {},
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		jar, _ := cookiejar.New(nil)
		c.http = &http.Client{Jar: jar, Timeout: 15 * time.Second}
	}
	return c
}

// Status returns the current session belief.
func (c *Controller) Status() core.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetPath records the current page path, which gates revalidation.
func (c *Controller) SetPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = path
}

// statement builds the fixed sign-in statement. It is English-only by
// contract: the signed text must not vary with UI language, or signature
// verification becomes non-deterministic across locales.
func statement(nonce string) string {
	return fmt.Sprintf("Sign in to PollPass with your wallet.\n\nNonce: %s", nonce)
}

type nonceResponse struct {
	Nonce string `json:"nonce"`
}

type completeResponse struct {
	Status  string `json:"status"`
	IsValid bool   `json:"isValid"`
	Address string `json:"address"`
	Message string `json:"message"`
}

// SignIn drives the full sequential sign-in flow: nonce, wallet
// signature, completion, session creation and first-login routing.
func (c *Controller) SignIn(ctx context.Context) error {
	nonce, err := c.fetchNonce(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch nonce: %w", err)
	}

	message := statement(nonce)
	signature, err := c.signer.SignMessage(ctx, message)
	if err != nil {
		return fmt.Errorf("wallet signing failed: %w", err)
	}

	address, err := c.completeSignIn(ctx, message, signature, nonce)
	if err != nil {
		return err
	}

	status, err := c.createSession(ctx, address)
	if err != nil {
		return err
	}

	c.apply(c.nextGen(), *status)

	if !status.Registered {
		c.onRedirect("/register?userId=" + status.Address)
		return nil
	}

	// Known, registered user: fetch the reconciled profile state to
	// decide first-login routing.
	return c.CheckSession(ctx)
}

func (c *Controller) fetchNonce(ctx context.Context) (string, error) {
	var resp nonceResponse
	if _, err := c.getJSON(ctx, "/auth/nonce", &resp); err != nil {
		return "", err
	}
	if resp.Nonce == "" {
		return "", fmt.Errorf("empty nonce from server")
	}
	return resp.Nonce, nil
}

func (c *Controller) completeSignIn(ctx context.Context, message, signature, nonce string) (string, error) {
	body := map[string]any{
		"payload": map[string]string{
			"message":   message,
			"signature": signature,
		},
		"nonce": nonce,
	}

	var resp completeResponse
	code, err := c.postJSON(ctx, "/auth/complete-siwe", body, &resp)
	if err != nil {
		return "", fmt.Errorf("sign-in completion failed: %w", err)
	}
	if code != http.StatusOK || !resp.IsValid {
		if resp.Message != "" {
			return "", fmt.Errorf("sign-in rejected: %s", resp.Message)
		}
		return "", fmt.Errorf("sign-in rejected with status %d", code)
	}
	return resp.Address, nil
}

func (c *Controller) createSession(ctx context.Context, address string) (*core.SessionStatus, error) {
	body := map[string]any{
		"walletAddress":  address,
		"isSiweVerified": true,
	}

	var status core.SessionStatus
	code, err := c.postJSON(ctx, "/auth/session", body, &status)
	if err != nil {
		return nil, fmt.Errorf("session creation failed: %w", err)
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("session creation rejected with status %d", code)
	}
	return &status, nil
}

// VerifyIdentity submits a proof-of-personhood upgrade. The local
// verification belief is deliberately not touched here: the server does
// not push flag changes, so the next session check observes the result.
func (c *Controller) VerifyIdentity(ctx context.Context, payload map[string]any, action, signal string) error {
	body := map[string]any{
		"payload": payload,
		"action":  action,
	}
	if signal != "" {
		body["signal"] = signal
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	code, err := c.postJSON(ctx, "/auth/verify", body, &resp)
	if err != nil {
		return fmt.Errorf("identity verification failed: %w", err)
	}
	if code != http.StatusOK || !resp.Success {
		if resp.Error != "" {
			return fmt.Errorf("identity verification rejected: %s", resp.Error)
		}
		return fmt.Errorf("identity verification rejected with status %d", code)
	}
	return nil
}

// Start runs the initial session check and the periodic revalidation
// loop until ctx is cancelled or Stop is called.
func (c *Controller) Start(ctx context.Context) {
	if c.shouldRevalidate() {
		if err := c.CheckSession(ctx); err != nil {
			c.logger.Warn("initial session check failed", "error", err)
		}
	}

	go c.loop(ctx)
}

// Stop halts the revalidation loop. Safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Focus triggers an immediate revalidation, as on a window-focus event.
func (c *Controller) Focus(ctx context.Context) {
	if !c.shouldRevalidate() {
		return
	}
	if err := c.CheckSession(ctx); err != nil {
		c.logger.Warn("focus session check failed", "error", err)
	}
}

func (c *Controller) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.shouldRevalidate() {
				continue
			}
			if err := c.CheckSession(ctx); err != nil {
				c.logger.Warn("periodic session check failed", "error", err)
			}
		}
	}
}

func (c *Controller) shouldRevalidate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range onboardingPaths {
		if strings.HasPrefix(c.path, p) {
			return false
		}
	}
	return true
}

// CheckSession fetches session status with a bounded retry budget.
// Transport errors and non-401 failures are treated as transient and
// retried; a 401 is definitive and triggers immediate teardown.
func (c *Controller) CheckSession(ctx context.Context) error {
	gen := c.nextGen()

	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		var status core.SessionStatus
		code, err := c.getJSON(ctx, "/auth/session", &status)

		next, definitive, retry := Reduce(c.Status(), &status, code, err)
		if definitive {
			c.apply(gen, next)
			c.onRedirect("/login")
			return nil
		}
		if !retry {
			c.apply(gen, next)
			return nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("session check failed with status %d", code)
		}
	}

	return fmt.Errorf("session check exhausted retries: %w", lastErr)
}

// Reduce is the pure state-transition step for a session check outcome.
// It returns the next status, whether the outcome was a definitive
// sign-out (401) and whether the attempt should be retried.
func Reduce(prev core.SessionStatus, resp *core.SessionStatus, code int, err error) (next core.SessionStatus, definitive bool, retry bool) {
	switch {
	case err != nil:
		// Transient transport failure: keep the previous belief.
		return prev, false, true
	case code == http.StatusUnauthorized:
		return core.SessionStatus{}, true, false
	case code == http.StatusOK:
		return *resp, false, false
	default:
		return prev, false, true
	}
}

// nextGen allocates a check generation. A check applies its result only
// if no later check has already applied; an in-flight check is never
// cancelled, its stale result is just superseded.
func (c *Controller) nextGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq++
	return c.nextSeq
}

func (c *Controller) apply(gen uint64, status core.SessionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen < c.applied {
		return
	}
	c.applied = gen
	c.status = status
}

func (c *Controller) getJSON(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	return c.doJSON(req, out)
}

func (c *Controller) postJSON(ctx context.Context, path string, body any, out any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Controller) doJSON(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil && len(raw) > 0 && resp.StatusCode < 500 {
		if err := json.Unmarshal(raw, out); err != nil && resp.StatusCode == http.StatusOK {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
