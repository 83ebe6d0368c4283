// Package httpscore provides a wake.Scorer backed by a local scoring sidecar
// speaking a minimal HTTP API:
//
//   - POST /score with raw little-endian 16-bit mono PCM in the body returns
//     {"score": 0.87} for the model's confidence over its rolling window.
//   - POST /reset clears the rolling window.
//
// The sidecar owns the neural model; this process only ships frames and reads
// scores, so model swaps never require a rebuild.
//
// Typical usage:
//
//	s := httpscore.New("http://localhost:9321",
//	    httpscore.WithTimeout(200*time.Millisecond),
//	)
//	score, err := s.Score(ctx, frame)
package httpscore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fantasma-ai/fantasma/pkg/audio"
	"github.com/fantasma-ai/fantasma/pkg/provider/wake"
)

// Compile-time interface assertion.
var _ wake.Scorer = (*Scorer)(nil)

const (
	scoreEndpoint = "/score"
	resetEndpoint = "/reset"

	// defaultTimeout is deliberately tight: a frame arrives every 30 ms, so a
	// slow sidecar must fail fast and count as score 0 rather than stall the
	// detection loop.
	defaultTimeout = 250 * time.Millisecond
)

// Option is a functional option for configuring a Scorer.
type Option func(*Scorer)

// WithTimeout sets the per-request HTTP timeout. Defaults to 250 ms.
func WithTimeout(d time.Duration) Option {
	return func(s *Scorer) {
		s.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client (e.g. for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scorer) {
		s.httpClient = c
	}
}

// Scorer implements wake.Scorer against a scoring sidecar.
type Scorer struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Scorer targeting the sidecar at baseURL.
func New(baseURL string, opts ...Option) *Scorer {
	s := &Scorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// Score implements [wake.Scorer].
func (s *Scorer) Score(ctx context.Context, f audio.Frame) (float64, error) {
	body := bytes.NewReader(audio.EncodeLE(f.PCM))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+scoreEndpoint, body)
	if err != nil {
		return 0, fmt.Errorf("httpscore: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Sample-Rate", fmt.Sprintf("%d", f.SampleRate))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("httpscore: score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("httpscore: sidecar returned %d: %s", resp.StatusCode, string(b))
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("httpscore: decode response: %w", err)
	}
	if out.Score < 0 || out.Score > 1 {
		return 0, fmt.Errorf("httpscore: score %v outside 0..1", out.Score)
	}
	return out.Score, nil
}

// Reset implements [wake.Scorer].
func (s *Scorer) Reset(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+resetEndpoint, nil)
	if err != nil {
		return fmt.Errorf("httpscore: build reset request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpscore: reset request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("httpscore: sidecar reset returned %d", resp.StatusCode)
	}
	return nil
}

// Close implements [wake.Scorer]. The HTTP client holds no per-scorer state.
func (s *Scorer) Close() error { return nil }
