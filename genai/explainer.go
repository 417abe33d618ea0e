// Package genai calls the external text-generation service that explains
// large vote discrepancies. Pure request/response; no state, no retries.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charles-mendoza/agile-poker/models"
)

// ExplainRequest carries the revealed numeric estimates and the story
// under discussion. Context is optional moderator-provided background.
type ExplainRequest struct {
	Estimates        []float64 `json:"estimates"`
	StoryDescription string    `json:"storyDescription"`
	Context          string    `json:"context,omitempty"`
}

// ExplainResponse is the single-paragraph, non-judgmental explanation.
type ExplainResponse struct {
	Explanation string `json:"explanation"`
}

// Explainer is an HTTP client for the explanation service.
type Explainer struct {
	url    string
	client *http.Client
}

// NewExplainer creates a client for the service at url.
func NewExplainer(url string, timeout time.Duration) *Explainer {
	return &Explainer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Explain requests an explanation for the given discrepancy. Failures are
// wrapped in models.ErrGenerationFailed so callers can surface them as a
// transient notification and retry on demand.
func (e *Explainer) Explain(ctx context.Context, req ExplainRequest) (ExplainResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ExplainResponse{}, fmt.Errorf("%w: encoding request: %v", models.ErrGenerationFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return ExplainResponse{}, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return ExplainResponse{}, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ExplainResponse{}, fmt.Errorf("%w: service returned %s", models.ErrGenerationFailed, resp.Status)
	}

	var out ExplainResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ExplainResponse{}, fmt.Errorf("%w: decoding response: %v", models.ErrGenerationFailed, err)
	}
	return out, nil
}
