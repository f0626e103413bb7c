package tokenizer

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pollpass/vigil/core"
	"github.com/pollpass/vigil/ports"
)

const AudienceSession = "vigil:session"

// JWTTokenizer implements the SessionTokenizer interface using JWT
type JWTTokenizer struct {
	secret []byte
}

// NewJWTTokenizer creates a new JWT tokenizer signing with the server secret
func NewJWTTokenizer(secret []byte) ports.SessionTokenizer {
	return &JWTTokenizer{secret: secret}
}

// Issue converts session claims to a signed JWT token
func (j *JWTTokenizer) Issue(claims *core.SessionClaims) (string, error) {
	if claims.Address == "" {
		return "", fmt.Errorf("address is required: %w", core.ErrInvalidToken)
	}

	tokenClaims := SessionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.SubjectID,
			Audience:  jwt.ClaimStrings{AudienceSession},
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
		},
		Address:          core.NormalizeAddress(claims.Address),
		Registered:       claims.Registered,
		SiweVerified:     claims.SiweVerified,
		IdentityVerified: claims.IdentityVerified,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Verify converts a JWT token back to session claims. Any structural
// problem, including a missing address claim under a valid signature,
// yields an error the caller treats as "no session".
func (j *JWTTokenizer) Verify(tokenStr string) (*core.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithAudience(AudienceSession))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionTokenClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	// A token without an address is invalid regardless of its signature.
	if claims.Address == "" {
		return nil, fmt.Errorf("missing address claim: %w", core.ErrInvalidToken)
	}

	session := &core.SessionClaims{
		SubjectID:        claims.Subject,
		Address:          core.NormalizeAddress(claims.Address),
		Registered:       claims.Registered,
		SiweVerified:     claims.SiweVerified,
		IdentityVerified: claims.IdentityVerified,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}

	return session, nil
}
