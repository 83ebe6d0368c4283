// Package mock provides a scripted test double for stt.Provider.
package mock

import (
	"context"
	"sync"

	"github.com/fantasma-ai/fantasma/pkg/audio"
	"github.com/fantasma-ai/fantasma/pkg/provider/stt"
)

// Step is one scripted Transcribe outcome.
type Step struct {
	Result stt.Result
	Err    error
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Steps are consumed in order; after exhaustion Default is returned.
	Steps []Step

	// Default is the result returned once the script runs out.
	Default stt.Result

	// Delay, if set, makes Transcribe wait before answering (or return early
	// with the context error), for timeout and supersession tests.
	Delay func(ctx context.Context) error

	// Buffers records every transcribed buffer.
	Buffers []audio.Buffer

	CloseCalls int

	next int
}

var _ stt.Provider = (*Provider)(nil)

// Texts builds a Provider that returns the given transcripts in order.
func Texts(texts ...string) *Provider {
	p := &Provider{}
	for _, t := range texts {
		p.Steps = append(p.Steps, Step{Result: stt.Result{Text: t}})
	}
	return p
}

// Transcribe records the buffer and returns the next scripted step.
func (p *Provider) Transcribe(ctx context.Context, b audio.Buffer) (stt.Result, error) {
	if p.Delay != nil {
		if err := p.Delay(ctx); err != nil {
			return stt.Result{}, err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Buffers = append(p.Buffers, b)
	if p.next < len(p.Steps) {
		step := p.Steps[p.next]
		p.next++
		return step.Result, step.Err
	}
	return p.Default, nil
}

// Close records the call.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCalls++
	return nil
}
