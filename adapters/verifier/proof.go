package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pollpass/vigil/core"
	"github.com/pollpass/vigil/internal/config"
	"github.com/pollpass/vigil/ports"
)

// ProofClient verifies proof-of-personhood submissions against the
// external identity-proof verifier service.
type ProofClient struct {
	baseURL string
	appID   string
	client  *http.Client
}

// NewProofClient creates a new identity-proof verifier client
func NewProofClient(baseURL, appID string) ports.ProofVerifier {
	return &ProofClient{
		baseURL: baseURL,
		appID:   appID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type proofRequest struct {
	ports.ProofPayload
	Action string `json:"action"`
	Signal string `json:"signal,omitempty"`
}

type proofError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// Verify posts the proof to the verifier service. The configured app id
// must be well-formed; a malformed id fails closed before any network call.
func (p *ProofClient) Verify(ctx context.Context, payload ports.ProofPayload, action, signal string) error {
	if !config.ValidAppID(p.appID) {
		return fmt.Errorf("malformed verifier app id: %w", core.ErrInvalidProof)
	}

	body, err := json.Marshal(proofRequest{
		ProofPayload: payload,
		Action:       action,
		Signal:       signal,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal proof request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/verify/%s", p.baseURL, p.appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build proof request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("proof verifier unreachable: %w", core.ErrInternal)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Echo the verifier's reported detail back to the caller.
	var verr proofError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &verr); err == nil && verr.Detail != "" {
		return fmt.Errorf("%s: %w", verr.Detail, core.ErrInvalidProof)
	}

	return fmt.Errorf("proof rejected with status %d: %w", resp.StatusCode, core.ErrInvalidProof)
}
