// Package mock provides a scripted test double for tts.Provider.
package mock

import (
	"context"
	"sync"

	"github.com/fantasma-ai/fantasma/pkg/audio"
	"github.com/fantasma-ai/fantasma/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider. By default every call
// renders a short fixed buffer; set Err to fail instead.
type Provider struct {
	mu sync.Mutex

	// Audio is the buffer returned for every synthesis. When zero, a 100 ms
	// 16 kHz silence buffer is returned.
	Audio audio.Buffer

	// Err, if non-nil, is returned by every Synthesize call.
	Err error

	// Delay, if set, runs before answering; returning an error aborts the
	// call (cancellation tests).
	Delay func(ctx context.Context) error

	// Texts records every synthesized phrase in order.
	Texts []string

	CloseCalls int
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize records the text and returns the configured buffer.
func (p *Provider) Synthesize(ctx context.Context, text string) (audio.Buffer, error) {
	if p.Delay != nil {
		if err := p.Delay(ctx); err != nil {
			return audio.Buffer{}, err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = append(p.Texts, text)
	if p.Err != nil {
		return audio.Buffer{}, p.Err
	}
	if len(p.Audio.PCM) == 0 {
		return audio.Buffer{PCM: make([]int16, 1600), SampleRate: 16000}, nil
	}
	return p.Audio, nil
}

// Close records the call.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCalls++
	return nil
}

// Synthesized returns a copy of the texts rendered so far.
func (p *Provider) Synthesized() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Texts))
	copy(out, p.Texts)
	return out
}
