// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed a controlled audio clip to the playback path and to
// verify the text, voice, and speed passed to the backend.
package mock

import (
	"context"
	"sync"

	"github.com/duplexvoice/duplex/pkg/audio"
	"github.com/duplexvoice/duplex/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Req is the Request passed to Synthesize.
	Req tts.Request
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Clip is returned by Synthesize. If zero, a small non-empty PCM clip
	// at 16 kHz mono is returned.
	Clip audio.Clip

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Delay, if non-nil, is closed by the test to release a blocked
	// Synthesize call. When nil, Synthesize returns immediately.
	Delay chan struct{}

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []tts.VoiceProfile

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// SynthesizeCalls records every call to Synthesize.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call, optionally blocks on Delay or ctx, and
// returns Clip, Err.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (audio.Clip, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Req: req})
	delay := p.Delay
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return audio.Clip{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return audio.Clip{}, p.Err
	}
	if len(p.Clip.PCM) > 0 {
		return p.Clip, nil
	}
	return audio.Clip{
		PCM:        []byte{0, 0, 0, 0},
		SampleRate: 16000,
		Channels:   1,
	}, nil
}

// ListVoices returns ListVoicesResult, ListVoicesErr.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListVoicesErr != nil {
		return nil, p.ListVoicesErr
	}
	return p.ListVoicesResult, nil
}

// CallCount returns the number of Synthesize calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
