// Package mock provides a scripted test double for llm.Provider.
package mock

import (
	"context"
	"sync"

	"github.com/fantasma-ai/fantasma/pkg/provider/llm"
)

// Step is one scripted Complete outcome.
type Step struct {
	Content string
	Err     error
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Steps are consumed in order; after exhaustion Default is returned.
	Steps []Step

	// Default is the content returned once the script runs out.
	Default string

	// Delay, if set, runs before answering; returning an error aborts the
	// call with that error (timeout and cancellation tests).
	Delay func(ctx context.Context) error

	// Requests records every completion request.
	Requests []llm.CompletionRequest

	next int
}

var _ llm.Provider = (*Provider)(nil)

// Replies builds a Provider answering with the given contents in order.
func Replies(contents ...string) *Provider {
	p := &Provider{}
	for _, c := range contents {
		p.Steps = append(p.Steps, Step{Content: c})
	}
	return p
}

// Complete records the request and returns the next scripted step.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.Delay != nil {
		if err := p.Delay(ctx); err != nil {
			return nil, err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if p.next < len(p.Steps) {
		step := p.Steps[p.next]
		p.next++
		if step.Err != nil {
			return nil, step.Err
		}
		return &llm.CompletionResponse{Content: step.Content}, nil
	}
	return &llm.CompletionResponse{Content: p.Default}, nil
}

// Calls returns how many completion calls were made.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
