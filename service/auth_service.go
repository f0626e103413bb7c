package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pollpass/vigil/core"
	"github.com/pollpass/vigil/ports"
)

// DefaultSessionTTL is the session token lifetime when none is configured.
const DefaultSessionTTL = 24 * time.Hour

// AuthService handles the session and identity-verification lifecycle
type AuthService struct {
	tokenizer ports.SessionTokenizer
	sigVerify ports.SignatureVerifier
	proofs    ports.ProofVerifier
	directory ports.UserDirectory
	eventPub  ports.EventPublisher
	logger    *slog.Logger

	sessionTTL time.Duration
}

// Option adjusts optional AuthService settings.
type Option func(*AuthService)

// WithSessionTTL overrides the session token lifetime. Non-positive
// values keep the default.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *AuthService) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.SessionTokenizer,
	sigVerify ports.SignatureVerifier,
	proofs ports.ProofVerifier,
	directory ports.UserDirectory,
	eventPub ports.EventPublisher,
	logger *slog.Logger,
	opts ...Option,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AuthService{
		tokenizer:  tokenizer,
		sigVerify:  sigVerify,
		proofs:     proofs,
		directory:  directory,
		eventPub:   eventPub,
		logger:     logger.With("component", "auth_service"),
		sessionTTL: DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueNonce generates a new single-use sign-in challenge
func (s *AuthService) IssueNonce() (*core.Challenge, error) {
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &core.Challenge{
		Nonce:    hex.EncodeToString(nonceBytes),
		IssuedAt: time.Now(),
	}, nil
}

// CompleteSignIn verifies a signed sign-in statement against the stored
// nonce and returns the signer's address. The claimed nonce must exactly
// match the stored one; on mismatch the attempt fails, never falling back
// to a substitute nonce. Signature verification always uses the stored
// nonce so the caller cannot supply an arbitrary one post-hoc.
func (s *AuthService) CompleteSignIn(ctx context.Context, message, signature, storedNonce, claimedNonce string) (string, error) {
	if storedNonce == "" || storedNonce != claimedNonce {
		s.logger.Warn("nonce mismatch on sign-in completion")
		return "", core.ErrInvalidNonce
	}

	address, err := s.sigVerify.Verify(ctx, message, signature, storedNonce)
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}

	if address == "" {
		return "", core.ErrInvalidProof
	}

	return core.NormalizeAddress(address), nil
}

// CreateSession looks up or creates the user record for a wallet address
// and issues a session token carrying its claims. A record created here
// starts with the temporary placeholder name, so registration is pending.
func (s *AuthService) CreateSession(ctx context.Context, walletAddress string, siweVerified bool) (string, *core.SessionStatus, error) {
	address := core.NormalizeAddress(walletAddress)
	if address == "" {
		return "", nil, core.ErrUnauthorized
	}

	user, err := s.directory.Get(ctx, address)
	if err == core.ErrNotFound {
		user = &core.User{Address: address, Name: core.TemporaryName}
		if err := s.directory.Create(ctx, user); err != nil {
			return "", nil, fmt.Errorf("failed to create user record: %w", err)
		}
	} else if err != nil {
		return "", nil, fmt.Errorf("failed to look up user record: %w", err)
	}

	now := time.Now()
	claims := &core.SessionClaims{
		SubjectID:        uuid.New().String(),
		Address:          address,
		Registered:       user.Registered(),
		SiweVerified:     siweVerified,
		IdentityVerified: user.Verified,
		IssuedAt:         now,
		ExpiresAt:        now.Add(s.sessionTTL),
	}

	token, err := s.tokenizer.Issue(claims)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	if err := s.eventPub.PublishLogin(ctx, address, claims.SubjectID); err != nil {
		// The session is already issued; event delivery is best-effort.
		s.logger.Warn("failed to publish login event", "error", err)
	}

	return token, &core.SessionStatus{
		Authenticated: true,
		Registered:    claims.Registered,
		Verified:      claims.IdentityVerified,
		Address:       address,
	}, nil
}

// SessionStatus verifies a session token and reconciles its claims with
// the directory record. The signed token is authoritative for identity;
// registration and verification are re-read from the directory because
// the cached claims can go stale.
func (s *AuthService) SessionStatus(ctx context.Context, token string) (*core.SessionStatus, error) {
	claims, err := s.tokenizer.Verify(token)
	if err != nil || claims == nil {
		return nil, core.ErrUnauthorized
	}

	user, err := s.directory.Get(ctx, claims.Address)
	if err == core.ErrNotFound {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user record: %w", err)
	}

	return &core.SessionStatus{
		Authenticated: true,
		Registered:    user.Registered(),
		Verified:      user.Verified,
		Address:       claims.Address,
	}, nil
}

// VerifyIdentity runs the proof-of-personhood upgrade for the session
// holder. On success the directory record is updated; cached session
// flags are not pushed to the client, which must re-fetch session status
// to observe the change.
func (s *AuthService) VerifyIdentity(ctx context.Context, token string, payload ports.ProofPayload, action, signal string) error {
	claims, err := s.tokenizer.Verify(token)
	if err != nil || claims == nil {
		return core.ErrUnauthorized
	}

	if _, err := s.directory.Get(ctx, claims.Address); err != nil {
		if err == core.ErrNotFound {
			return core.ErrNotFound
		}
		return fmt.Errorf("failed to look up user record: %w", err)
	}

	if err := s.proofs.Verify(ctx, payload, action, signal); err != nil {
		return err
	}

	if err := s.directory.SetVerified(ctx, claims.Address, true); err != nil {
		return fmt.Errorf("failed to update verification flag: %w", err)
	}

	if err := s.eventPub.PublishVerified(ctx, claims.Address); err != nil {
		s.logger.Warn("failed to publish verified event", "error", err)
	}

	return nil
}

// AddressFromToken extracts the wallet address from a session token, or
// an empty string when the token is unreadable. Used by logout, which
// must proceed either way.
func (s *AuthService) AddressFromToken(token string) string {
	claims, err := s.tokenizer.Verify(token)
	if err != nil || claims == nil {
		return ""
	}
	return claims.Address
}

// SubjectFromToken extracts the subject id from a session token, or an
// empty string when the token is unreadable.
func (s *AuthService) SubjectFromToken(token string) string {
	claims, err := s.tokenizer.Verify(token)
	if err != nil || claims == nil {
		return ""
	}
	return claims.SubjectID
}

// Logout publishes the logout event for an address. Cookie teardown is
// the transport's job; logout never requires a valid session, so the
// address may be empty when the token was already unreadable.
func (s *AuthService) Logout(ctx context.Context, address string) {
	if address == "" {
		return
	}
	if err := s.eventPub.PublishLogout(ctx, address); err != nil {
		s.logger.Warn("failed to publish logout event", "error", err)
	}
}
