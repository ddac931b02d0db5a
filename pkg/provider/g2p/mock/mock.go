// Package mock provides a deterministic test double for the g2p package.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/fonoletra/fonoletra/pkg/provider/g2p"
)

// Provider is a mock implementation of g2p.Provider. The zero value maps
// every input to itself, which is convenient for tests where "same text"
// should mean "same phonemes".
type Provider struct {
	mu sync.Mutex

	// Mapping, when non-nil, maps lower-cased input text to phoneme
	// strings. Inputs not present in the map fall back to the input
	// itself.
	Mapping map[string]string

	// Err, if non-nil, is returned as the error from Phonemes.
	Err error

	// Unavailable makes Phonemes return g2p.ErrUnavailable.
	Unavailable bool

	// Calls records every input text passed to Phonemes.
	Calls []string
}

// Phonemes records the call and returns the mapped phoneme string.
func (p *Provider) Phonemes(_ context.Context, text, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, text)
	if p.Err != nil {
		return "", p.Err
	}
	if p.Unavailable {
		return "", g2p.ErrUnavailable
	}
	key := strings.ToLower(strings.TrimSpace(text))
	if p.Mapping != nil {
		if ph, ok := p.Mapping[key]; ok {
			return ph, nil
		}
	}
	return key, nil
}
