package core

import (
	"strings"
	"time"
)

// TemporaryName is the placeholder name assigned to a user record at
// creation time. A record still carrying it has not completed registration.
const TemporaryName = "temporary"

// Challenge is a single-use nonce bound to one sign-in attempt.
type Challenge struct {
	Nonce    string    // Random value the wallet must sign
	IssuedAt time.Time // When the challenge was created
}

// SessionClaims are the identity claims carried by a session token.
type SessionClaims struct {
	SubjectID        string    // Unique session subject identifier
	Address          string    // Wallet address, canonical lower-case
	Registered       bool      // Registration completed
	SiweVerified     bool      // Wallet signature was verified at sign-in
	IdentityVerified bool      // Proof-of-personhood accepted
	IssuedAt         time.Time
	ExpiresAt        time.Time
}

// SessionStatus is the reconciled view of a session returned to clients.
// It is a plain value so state transitions can be asserted without
// reaching into controller internals.
type SessionStatus struct {
	Authenticated bool   `json:"isAuthenticated"`
	Registered    bool   `json:"isRegistered"`
	Verified      bool   `json:"isVerified"`
	Address       string `json:"address,omitempty"`
}

// User is the directory record for a wallet address. The directory owns
// it; session claims and cookies are cached views taken at session
// creation and reconciled by re-verification.
type User struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// Registered reports whether the record completed registration. A record
// still named with the temporary placeholder is incomplete.
func (u User) Registered() bool {
	return u.Name != "" && u.Name != TemporaryName
}

// NormalizeAddress lower-cases a wallet address into its canonical form.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
