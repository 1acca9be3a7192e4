// Package mock provides a scripted commentary.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/nzoschke/soundscribe/pkg/commentary"
)

// Reply is one scripted outcome.
type Reply struct {
	Content string
	Err     error
}

// Provider returns scripted replies in order and repeats the last one when exhausted.
type Provider struct {
	mu       sync.Mutex
	replies  []Reply
	requests []commentary.CompletionRequest
}

// New returns a Provider that answers with replies.
func New(replies ...Reply) *Provider {
	return &Provider{replies: replies}
}

// Name implements commentary.Provider.
func (p *Provider) Name() string { return "mock" }

// Complete implements commentary.Provider.
func (p *Provider) Complete(ctx context.Context, req commentary.CompletionRequest) (*commentary.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := min(len(p.requests), len(p.replies)-1)
	p.requests = append(p.requests, req)
	if idx < 0 {
		return &commentary.CompletionResponse{}, nil
	}
	r := p.replies[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	return &commentary.CompletionResponse{Content: r.Content, FinishReason: "stop"}, nil
}

// Requests returns every request received so far.
func (p *Provider) Requests() []commentary.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]commentary.CompletionRequest(nil), p.requests...)
}
