package ports

import "context"

// SignatureVerifier checks a signed sign-in statement against the nonce
// the server issued and returns the signer's address.
type SignatureVerifier interface {
	Verify(ctx context.Context, message, signature, nonce string) (address string, err error)
}

// ProofPayload is the zero-knowledge proof material submitted for the
// optional proof-of-personhood upgrade.
type ProofPayload struct {
	Proof             string `json:"proof"`
	MerkleRoot        string `json:"merkle_root"`
	NullifierHash     string `json:"nullifier_hash"`
	VerificationLevel string `json:"verification_level,omitempty"`
}

// ProofVerifier validates a proof-of-personhood for an action id and an
// optional signal.
type ProofVerifier interface {
	Verify(ctx context.Context, payload ProofPayload, action, signal string) error
}
