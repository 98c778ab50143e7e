// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to feed controlled transcripts to the pipeline and inspect
// which audio was submitted for transcription.
//
// Example:
//
//	p := &mock.Provider{Result: &stt.Result{Text: "hello there", Confidence: 0.9}}
//	res, _ := p.Transcribe(ctx, stt.Request{PCM: pcm, SampleRate: 16000})
package mock

import (
	"context"
	"sync"

	"github.com/duplexvoice/duplex/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the Request passed to Transcribe, with PCM copied.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe. If nil, an empty Result with
	// DefaultConfidence is returned.
	Result *stt.Result

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Delay, if non-nil, is closed by the test to release a blocked
	// Transcribe call. When nil, Transcribe returns immediately.
	Delay chan struct{}

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call, optionally blocks on Delay or ctx, and
// returns Result, Err.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	p.mu.Lock()
	cp := req
	cp.PCM = append([]byte(nil), req.PCM...)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: cp})
	delay := p.Delay
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result != nil {
		r := *p.Result
		return &r, nil
	}
	return &stt.Result{Confidence: stt.DefaultConfidence}, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
