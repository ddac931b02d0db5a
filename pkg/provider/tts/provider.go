// Package tts defines the Provider interface for text-to-speech backends
// used to synthesize spoken feedback messages.
//
// Feedback synthesis is batch: one short message in, one complete audio
// file out. Results are cached by message content (see internal/ttscache),
// so providers are only hit on cache misses.
package tts

import "context"

// Request describes one synthesis call.
type Request struct {
	// Text is the message to speak.
	Text string

	// Language is the BCP-47 language code (e.g. "pt").
	Language string

	// Slow requests a slower speaking rate. Used for single phonemes and
	// letters, which young learners need articulated clearly.
	Slow bool
}

// Provider is the abstraction over any batch TTS backend.
type Provider interface {
	// Synthesize renders the request to a complete audio file (WAV bytes).
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
