package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionTokenClaims combines standard claims with session-specific ones
type SessionTokenClaims struct {
	jwt.RegisteredClaims
	Address          string `json:"address"`
	Registered       bool   `json:"registered"`
	SiweVerified     bool   `json:"siwe_verified"`
	IdentityVerified bool   `json:"identity_verified"`
}
