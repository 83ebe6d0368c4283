// Package openai provides an stt.Provider backed by the OpenAI audio
// transcription API. Any whisper-compatible server that speaks the same API
// (e.g. a local faster-whisper container) can be targeted via the base URL.
//
// Typical usage:
//
//	p, err := openai.New("whisper-1",
//	    openai.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    openai.WithLanguage("pt"),
//	)
//	res, err := p.Transcribe(ctx, utterance)
package openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/fantasma-ai/fantasma/pkg/audio"
	"github.com/fantasma-ai/fantasma/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithAPIKey sets the API key sent to the backend. Local whisper servers
// typically accept any value.
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.requestOpts = append(p.requestOpts, option.WithAPIKey(key))
	}
}

// WithBaseURL points the client at a non-default endpoint, e.g. a local
// whisper server exposing the OpenAI transcription API.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.requestOpts = append(p.requestOpts, option.WithBaseURL(url))
	}
}

// WithLanguage fixes the transcription language (ISO-639-1, e.g. "pt").
// Unset means backend auto-detection.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithPrompt sets the optional transcription prompt used to bias decoding
// towards domain vocabulary (device nicknames, names).
func WithPrompt(prompt string) Option {
	return func(p *Provider) {
		p.prompt = prompt
	}
}

// Provider implements stt.Provider via the OpenAI audio API.
type Provider struct {
	client      oai.Client
	model       string
	language    string
	prompt      string
	requestOpts []option.RequestOption
}

// New creates a Provider for the given transcription model.
func New(model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("openai stt: model must not be empty")
	}
	p := &Provider{model: model}
	for _, opt := range opts {
		opt(p)
	}
	p.client = oai.NewClient(p.requestOpts...)
	return p, nil
}

// Transcribe implements [stt.Provider]. The buffer is wrapped in a WAV
// container because the transcription endpoint refuses bare PCM.
func (p *Provider) Transcribe(ctx context.Context, b audio.Buffer) (stt.Result, error) {
	if b.Empty() {
		return stt.Result{}, nil
	}

	params := oai.AudioTranscriptionNewParams{
		Model: oai.AudioModel(p.model),
		File:  oai.File(bytes.NewReader(audio.EncodeWAV(b)), "utterance.wav", "audio/wav"),
	}
	if p.language != "" {
		params.Language = oai.String(p.language)
	}
	if p.prompt != "" {
		params.Prompt = oai.String(p.prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Result{}, fmt.Errorf("openai stt: transcribe: %w", err)
	}

	return stt.Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: p.language,
	}, nil
}

// Close implements [stt.Provider].
func (p *Provider) Close() error { return nil }
