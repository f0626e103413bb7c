package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pollpass/vigil/adapters/directory"
	"github.com/pollpass/vigil/adapters/tokenizer"
	"github.com/pollpass/vigil/core"
	"github.com/pollpass/vigil/ports"
	"github.com/stretchr/testify/require"
)

type stubSignatureVerifier struct {
	address   string
	err       error
	gotNonce  string
	gotMsg    string
	gotSig    string
	callCount int
}

func (s *stubSignatureVerifier) Verify(ctx context.Context, message, signature, nonce string) (string, error) {
	s.callCount++
	s.gotMsg = message
	s.gotSig = signature
	s.gotNonce = nonce
	return s.address, s.err
}

type stubProofVerifier struct {
	err       error
	callCount int
}

func (s *stubProofVerifier) Verify(ctx context.Context, payload ports.ProofPayload, action, signal string) error {
	s.callCount++
	return s.err
}

type recordingPublisher struct {
	logins   []string
	logouts  []string
	verified []string
}

func (p *recordingPublisher) PublishLogin(ctx context.Context, address, subjectID string) error {
	p.logins = append(p.logins, address)
	return nil
}

func (p *recordingPublisher) PublishLogout(ctx context.Context, address string) error {
	p.logouts = append(p.logouts, address)
	return nil
}

func (p *recordingPublisher) PublishVerified(ctx context.Context, address string) error {
	p.verified = append(p.verified, address)
	return nil
}

// emptyDirectory simulates a record that vanished behind the directory.
type emptyDirectory struct{}

func (emptyDirectory) Get(ctx context.Context, address string) (*core.User, error) {
	return nil, core.ErrNotFound
}

func (emptyDirectory) Create(ctx context.Context, user *core.User) error { return nil }

func (emptyDirectory) SetVerified(ctx context.Context, address string, verified bool) error {
	return core.ErrNotFound
}

func newTestService(sig *stubSignatureVerifier, proofs *stubProofVerifier) (*AuthService, ports.UserDirectory, *recordingPublisher) {
	dir := directory.NewMemoryDirectory()
	pub := &recordingPublisher{}
	svc := NewAuthService(
		tokenizer.NewJWTTokenizer([]byte("test-secret")),
		sig,
		proofs,
		dir,
		pub,
		nil,
	)
	return svc, dir, pub
}

func TestIssueNonce(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(&stubSignatureVerifier{}, &stubProofVerifier{})

	c1, err := svc.IssueNonce()
	require.NoError(t, err)
	require.Len(t, c1.Nonce, 64)
	require.False(t, c1.IssuedAt.IsZero())

	c2, err := svc.IssueNonce()
	require.NoError(t, err)
	require.NotEqual(t, c1.Nonce, c2.Nonce)
}

func TestCompleteSignIn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("superseded nonce fails", func(t *testing.T) {
		// n1 was issued and then replaced by n2; a signature referencing
		// n1 must not validate against the stored n2.
		sig := &stubSignatureVerifier{address: "0xabc"}
		svc, _, _ := newTestService(sig, &stubProofVerifier{})

		_, err := svc.CompleteSignIn(ctx, "msg", "sig", "n2", "n1")
		require.ErrorIs(t, err, core.ErrInvalidNonce)
		require.Zero(t, sig.callCount, "verifier must not run on nonce mismatch")
	})

	t.Run("missing stored nonce fails closed", func(t *testing.T) {
		svc, _, _ := newTestService(&stubSignatureVerifier{address: "0xabc"}, &stubProofVerifier{})

		_, err := svc.CompleteSignIn(ctx, "msg", "sig", "", "")
		require.ErrorIs(t, err, core.ErrInvalidNonce)
	})

	t.Run("exact mismatch including length", func(t *testing.T) {
		svc, _, _ := newTestService(&stubSignatureVerifier{address: "0xabc"}, &stubProofVerifier{})

		_, err := svc.CompleteSignIn(ctx, "msg", "sig", "abc123", "abc124")
		require.ErrorIs(t, err, core.ErrInvalidNonce)
	})

	t.Run("verifier receives the stored nonce", func(t *testing.T) {
		sig := &stubSignatureVerifier{address: "0xAbC"}
		svc, _, _ := newTestService(sig, &stubProofVerifier{})

		address, err := svc.CompleteSignIn(ctx, "msg", "sig", "abc123", "abc123")
		require.NoError(t, err)
		require.Equal(t, "0xabc", address)
		require.Equal(t, "abc123", sig.gotNonce)
	})

	t.Run("empty recovered address fails", func(t *testing.T) {
		svc, _, _ := newTestService(&stubSignatureVerifier{address: ""}, &stubProofVerifier{})

		_, err := svc.CompleteSignIn(ctx, "msg", "sig", "n1", "n1")
		require.ErrorIs(t, err, core.ErrInvalidProof)
	})

	t.Run("verifier failure propagates", func(t *testing.T) {
		svc, _, _ := newTestService(&stubSignatureVerifier{err: core.ErrInvalidProof}, &stubProofVerifier{})

		_, err := svc.CompleteSignIn(ctx, "msg", "sig", "n1", "n1")
		require.ErrorIs(t, err, core.ErrInvalidProof)
	})
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unknown address gets a pending record", func(t *testing.T) {
		svc, dir, pub := newTestService(&stubSignatureVerifier{}, &stubProofVerifier{})

		token, status, err := svc.CreateSession(ctx, "0xAbCdEf", true)
		require.NoError(t, err)
		require.NotEmpty(t, token)
		require.True(t, status.Authenticated)
		require.False(t, status.Registered)
		require.Equal(t, "0xabcdef", status.Address)
		require.Equal(t, []string{"0xabcdef"}, pub.logins)

		user, err := dir.Get(ctx, "0xabcdef")
		require.NoError(t, err)
		require.Equal(t, core.TemporaryName, user.Name)
	})

	t.Run("registered user keeps their state", func(t *testing.T) {
		svc, dir, _ := newTestService(&stubSignatureVerifier{}, &stubProofVerifier{})
		require.NoError(t, dir.Create(ctx, &core.User{Address: "0xdef", Name: "alice", Verified: true}))

		_, status, err := svc.CreateSession(ctx, "0xDEF", true)
		require.NoError(t, err)
		require.True(t, status.Registered)
		require.True(t, status.Verified)
	})

	t.Run("empty address is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(&stubSignatureVerifier{}, &stubProofVerifier{})

		_, _, err := svc.CreateSession(ctx, "  ", true)
		require.ErrorIs(t, err, core.ErrUnauthorized)
	})

	t.Run("configured lifetime is stamped into the token", func(t *testing.T) {
		tk := tokenizer.NewJWTTokenizer([]byte("test-secret"))
		svc := NewAuthService(tk, &stubSignatureVerifier{}, &stubProofVerifier{},
			directory.NewMemoryDirectory(), &recordingPublisher{}, nil,
			WithSessionTTL(time.Hour),
		)

		token, _, err := svc.CreateSession(ctx, "0xabc", true)
		require.NoError(t, err)

		claims, err := tk.Verify(token)
		require.NoError(t, err)
		require.WithinDuration(t, claims.IssuedAt.Add(time.Hour), claims.ExpiresAt, time.Second)
	})
}

func TestSessionStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("malformed token is unauthorized, not a crash", func(t *testing.T) {
		svc, _, _ := newTestService(&stubSignatureVerifier{}, &stubProofVerifier{})

		_, err := svc.SessionStatus(ctx, "garbage")
		require.ErrorIs(t, err, core.ErrUnauthorized)
	})

	t.Run("vanished record is not found", func(t *testing.T) {
		tk := tokenizer.NewJWTTokenizer([]byte("test-secret"))
		svc := NewAuthService(tk, &stubSignatureVerifier{}, &stubProofVerifier{}, emptyDirectory{}, &recordingPublisher{}, nil)

		token, err := tk.Issue(&core.SessionClaims{
			SubjectID: "subject-1",
			Address:   "0xabc",
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)

		_, err = svc.SessionStatus(ctx, token)
		require.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("status reconciles from the directory", func(t *testing.T) {
		svc, dir, _ := newTestService(&stubSignatureVerifier{}, &stubProofVerifier{})

		token, status, err := svc.CreateSession(ctx, "0xabc", true)
		require.NoError(t, err)
		require.False(t, status.Registered)

		// Registration completes after the token was issued; the next
		// status check observes the directory, not the stale claim.
		require.NoError(t, dir.Create(ctx, &core.User{Address: "0xabc", Name: "alice"}))

		refreshed, err := svc.SessionStatus(ctx, token)
		require.NoError(t, err)
		require.True(t, refreshed.Registered)
	})
}

func TestVerifyIdentity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("requires a valid session", func(t *testing.T) {
		proofs := &stubProofVerifier{}
		svc, _, _ := newTestService(&stubSignatureVerifier{}, proofs)

		err := svc.VerifyIdentity(ctx, "garbage", ports.ProofPayload{}, "verify-human", "")
		require.ErrorIs(t, err, core.ErrUnauthorized)
		require.Zero(t, proofs.callCount)
	})

	t.Run("success updates the directory and publishes", func(t *testing.T) {
		proofs := &stubProofVerifier{}
		svc, dir, pub := newTestService(&stubSignatureVerifier{}, proofs)

		token, _, err := svc.CreateSession(ctx, "0xabc", true)
		require.NoError(t, err)

		require.NoError(t, svc.VerifyIdentity(ctx, token, ports.ProofPayload{Proof: "p"}, "verify-human", ""))

		user, err := dir.Get(ctx, "0xabc")
		require.NoError(t, err)
		require.True(t, user.Verified)
		require.Equal(t, []string{"0xabc"}, pub.verified)
	})

	t.Run("verifier failure propagates without directory update", func(t *testing.T) {
		proofs := &stubProofVerifier{err: errors.New("rejected: " + core.ErrInvalidProof.Error())}
		svc, dir, _ := newTestService(&stubSignatureVerifier{}, proofs)

		token, _, err := svc.CreateSession(ctx, "0xabc", true)
		require.NoError(t, err)

		err = svc.VerifyIdentity(ctx, token, ports.ProofPayload{}, "verify-human", "")
		require.Error(t, err)

		user, getErr := dir.Get(ctx, "0xabc")
		require.NoError(t, getErr)
		require.False(t, user.Verified)
	})
}

func TestAddressFromToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(&stubSignatureVerifier{}, &stubProofVerifier{})

	token, _, err := svc.CreateSession(ctx, "0xAbC", true)
	require.NoError(t, err)

	require.Equal(t, "0xabc", svc.AddressFromToken(token))
	require.Empty(t, svc.AddressFromToken("garbage"))
}
