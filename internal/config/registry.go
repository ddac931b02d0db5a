package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fonoletra/fonoletra/pkg/provider/g2p"
	"github.com/fonoletra/fonoletra/pkg/provider/stt"
	"github.com/fonoletra/fonoletra/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	stt map[string]func(ProviderEntry) (stt.Provider, error)
	g2p map[string]func(ProviderEntry) (g2p.Provider, error)
	tts map[string]func(ProviderEntry) (tts.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt: make(map[string]func(ProviderEntry) (stt.Provider, error)),
		g2p: make(map[string]func(ProviderEntry) (g2p.Provider, error)),
		tts: make(map[string]func(ProviderEntry) (tts.Provider, error)),
	}
}

// RegisterSTT registers a transcription provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterG2P registers a grapheme-to-phoneme provider factory under name.
func (r *Registry) RegisterG2P(name string, factory func(ProviderEntry) (g2p.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.g2p[name] = factory
}

// RegisterTTS registers a speech synthesis provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateSTT constructs the transcription provider selected by entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateG2P constructs the grapheme-to-phoneme provider selected by
// entry.Name.
func (r *Registry) CreateG2P(entry ProviderEntry) (g2p.Provider, error) {
	r.mu.RLock()
	factory, ok := r.g2p[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: g2p %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS constructs the speech synthesis provider selected by
// entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
