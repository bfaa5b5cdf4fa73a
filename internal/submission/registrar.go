package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kycgate/internal/document"
)

// RegistrationRequest is the payload sent to the registration endpoint.
type RegistrationRequest struct {
	DocumentKind document.Kind `json:"document_type"`
	Format       string        `json:"document_format"`
	Checksum     string        `json:"expected_checksum"`
	SizeBytes    int           `json:"file_size"`
	Side         document.Side `json:"page_type"`
}

// RegistrationOutcome is the endpoint's verdict. An empty DocumentID keeps
// the locally generated one.
type RegistrationOutcome struct {
	Status     Status `json:"status"`
	DocumentID string `json:"document_id"`
}

// Registrar registers a document with the external verification registry.
type Registrar interface {
	Register(ctx context.Context, req RegistrationRequest) (RegistrationOutcome, error)
}

// HTTPRegistrar talks to a live registration endpoint.
type HTTPRegistrar struct {
	url    string
	client *http.Client
}

func NewHTTPRegistrar(url string) *HTTPRegistrar {
	return &HTTPRegistrar{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPRegistrar) Register(ctx context.Context, req RegistrationRequest) (RegistrationOutcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return RegistrationOutcome{}, fmt.Errorf("encoding registration request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return RegistrationOutcome{}, fmt.Errorf("building registration request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return RegistrationOutcome{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RegistrationOutcome{}, fmt.Errorf("reading registration response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return RegistrationOutcome{}, fmt.Errorf("registration endpoint returned %d", resp.StatusCode)
	}

	var outcome RegistrationOutcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return RegistrationOutcome{}, fmt.Errorf("decoding registration response: %w", err)
	}
	if !outcome.Status.IsValid() {
		outcome.Status = StatusPending
	}
	return outcome, nil
}

// simulateOutcome deterministically synthesizes a registration verdict from
// the quality score alone. Downstream logic cannot tell a simulated outcome
// from a live one.
func simulateOutcome(qualityScore float64) RegistrationOutcome {
	switch {
	case qualityScore >= 80:
		return RegistrationOutcome{Status: StatusAccepted}
	case qualityScore >= 50:
		return RegistrationOutcome{Status: StatusNeedsReview}
	default:
		return RegistrationOutcome{Status: StatusRejected}
	}
}
