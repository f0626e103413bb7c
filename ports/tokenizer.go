package ports

import "github.com/pollpass/vigil/core"

// SessionTokenizer converts session claims to and from signed tokens.
type SessionTokenizer interface {
	// Issue signs claims into an opaque token string.
	Issue(claims *core.SessionClaims) (string, error)

	// Verify checks signature, algorithm and structure. It returns an
	// error for any problem, including a missing address claim; callers
	// treat every failure as "no session", never as a crash.
	Verify(token string) (*core.SessionClaims, error)
}
