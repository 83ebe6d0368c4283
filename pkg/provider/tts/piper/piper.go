// Package piper provides a tts.Provider backed by a piper HTTP server. The
// server answers POST / with a WAV rendering of the request body text; the
// provider strips the container and optionally resamples to the playback rate.
//
// Typical usage:
//
//	p := piper.New("http://localhost:5000",
//	    piper.WithVoice("pt_PT-tugao-medium"),
//	    piper.WithOutputRate(22050),
//	)
//	buf, err := p.Synthesize(ctx, "Olá")
package piper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fantasma-ai/fantasma/pkg/audio"
	"github.com/fantasma-ai/fantasma/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const defaultTimeout = 30 * time.Second

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithVoice selects the piper voice model, passed as the "voice" query
// parameter. Empty means the server default.
func WithVoice(voice string) Option {
	return func(p *Provider) {
		p.voice = voice
	}
}

// WithOutputRate resamples synthesized audio to the given rate. Zero keeps
// whatever the voice model produces.
func WithOutputRate(rate int) Option {
	return func(p *Provider) {
		p.outputRate = rate
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client (e.g. for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider against a piper HTTP server.
type Provider struct {
	baseURL    string
	voice      string
	outputRate int
	httpClient *http.Client
}

// New creates a Provider targeting the piper server at baseURL.
func New(baseURL string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Synthesize implements [tts.Provider].
func (p *Provider) Synthesize(ctx context.Context, text string) (audio.Buffer, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Buffer{}, fmt.Errorf("piper: empty text")
	}

	endpoint := p.baseURL + "/"
	if p.voice != "" {
		endpoint += "?voice=" + url.QueryEscape(p.voice)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(text))
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("piper: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("piper: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return audio.Buffer{}, fmt.Errorf("piper: server returned %d: %s", resp.StatusCode, string(b))
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("piper: read response: %w", err)
	}

	buf, err := audio.DecodeWAV(wav)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("piper: decode response: %w", err)
	}

	if p.outputRate != 0 && p.outputRate != buf.SampleRate {
		buf = audio.Buffer{
			PCM:        audio.ResampleMono16(buf.PCM, buf.SampleRate, p.outputRate),
			SampleRate: p.outputRate,
		}
	}
	return buf, nil
}

// Close implements [tts.Provider].
func (p *Provider) Close() error { return nil }
