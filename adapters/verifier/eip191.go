package verifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pollpass/vigil/core"
	"github.com/pollpass/vigil/ports"
)

// EIP191Verifier verifies personal_sign (EIP-191) signatures over the
// sign-in statement and recovers the signer's address.
type EIP191Verifier struct{}

// NewEIP191Verifier creates a new EIP-191 signature verifier
func NewEIP191Verifier() ports.SignatureVerifier {
	return &EIP191Verifier{}
}

// Verify checks that message embeds the server-issued nonce, recovers the
// signer from the signature and returns the address lower-cased.
func (v *EIP191Verifier) Verify(ctx context.Context, message, signature, nonce string) (string, error) {
	if nonce == "" || !strings.Contains(message, nonce) {
		return "", fmt.Errorf("statement does not reference issued nonce: %w", core.ErrInvalidNonce)
	}

	decodedSig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", core.ErrInvalidProof)
	}
	if len(decodedSig) != 65 {
		return "", fmt.Errorf("signature must be 65 bytes: %w", core.ErrInvalidProof)
	}

	// Wallets return V as 27/28; crypto.SigToPub expects 0/1.
	if decodedSig[64] >= 27 {
		decodedSig[64] -= 27
	}

	hash := accounts.TextHash([]byte(message))

	pubKey, err := crypto.SigToPub(hash, decodedSig)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", core.ErrInvalidProof)
	}

	address := crypto.PubkeyToAddress(*pubKey).Hex()
	if address == "" {
		return "", core.ErrInvalidProof
	}

	return core.NormalizeAddress(address), nil
}
