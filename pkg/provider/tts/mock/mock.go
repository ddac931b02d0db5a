// Package mock provides a test double for the tts package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/fonoletra/fonoletra/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider. The zero value returns
// the request text as audio bytes, so tests can assert on content without
// real synthesis.
type Provider struct {
	mu sync.Mutex

	// Audio, when non-nil, is returned from every Synthesize call.
	Audio []byte

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Calls records every request passed to Synthesize.
	Calls []tts.Request
}

// Synthesize records the call and returns Audio (or the request text when
// Audio is nil), Err.
func (p *Provider) Synthesize(_ context.Context, req tts.Request) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, req)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Audio != nil {
		return p.Audio, nil
	}
	return []byte(req.Text), nil
}
