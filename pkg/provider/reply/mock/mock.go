// Package mock provides a test double for the reply.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/duplexvoice/duplex/pkg/provider/reply"
)

// GenerateCall records a single invocation of Provider.Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Req is the Request passed to Generate, with Messages copied.
	Req reply.Request
}

// Provider is a mock implementation of reply.Provider.
type Provider struct {
	mu sync.Mutex

	// Text is returned by Generate.
	Text string

	// Err, if non-nil, is returned as the error from Generate.
	Err error

	// Delay, if non-nil, is closed by the test to release a blocked
	// Generate call. When nil, Generate returns immediately.
	Delay chan struct{}

	// GenerateCalls records every call to Generate.
	GenerateCalls []GenerateCall
}

// Generate records the call, optionally blocks on Delay or ctx, and returns
// Text, Err.
func (p *Provider) Generate(ctx context.Context, req reply.Request) (string, error) {
	p.mu.Lock()
	cp := req
	cp.Messages = append([]reply.Message(nil), req.Messages...)
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Req: cp})
	delay := p.Delay
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// CallCount returns the number of Generate calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.GenerateCalls)
}

// Ensure Provider implements reply.Provider at compile time.
var _ reply.Provider = (*Provider)(nil)
