// Package mock provides a test double for the stt package interfaces.
//
// Use Provider to return a fixed Transcript (or error) and inspect the
// buffers and language hints the caller delivered.
//
// Example:
//
//	p := &mock.Provider{Result: stt.Transcript{Text: "bola"}}
//	tr, _ := p.Transcribe(ctx, buf, "pt")
package mock

import (
	"context"
	"sync"

	"github.com/fonoletra/fonoletra/pkg/audio"
	"github.com/fonoletra/fonoletra/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Buffer is the PCM buffer passed to Transcribe.
	Buffer audio.Buffer
	// Language is the language hint passed to Transcribe.
	Language string
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is the Transcript returned by Transcribe.
	Result stt.Transcript

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every call to Transcribe.
	Calls []TranscribeCall
}

// Transcribe records the call and returns Result, Err.
func (p *Provider) Transcribe(_ context.Context, b audio.Buffer, language string) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeCall{Buffer: b, Language: language})
	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	return p.Result, nil
}
