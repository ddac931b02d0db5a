// Package stt defines the Provider interface for speech-to-text backends.
//
// Evaluation is a batch workflow: each request carries one short, already
// enhanced clip, so the port is a single blocking Transcribe call rather
// than a streaming session. Implementations must be safe for concurrent
// use; one provider instance serves all evaluation requests.
//
// "No speech found" is not an error. Providers return an empty Transcript
// in that case; errors are reserved for transport and server failures.
package stt

import (
	"context"

	"github.com/fonoletra/fonoletra/pkg/audio"
)

// Word is a single recognised word with the probability the engine assigns
// to it.
type Word struct {
	Word        string
	Probability float64
}

// Transcript is the result of transcribing one clip.
type Transcript struct {
	// Text is the transcribed speech, trimmed. Empty when no speech was
	// recognised.
	Text string

	// Words holds per-word detail in utterance order, when the engine
	// provides it. May be nil.
	Words []Word
}

// Confidence returns the unweighted mean of the per-word probabilities.
// When word detail is missing but text was recognised, a neutral 0.5 is
// reported; an empty transcript has confidence 0.
func (t Transcript) Confidence() float64 {
	if len(t.Words) == 0 {
		if t.Text == "" {
			return 0
		}
		return 0.5
	}
	var sum float64
	for _, w := range t.Words {
		sum += w.Probability
	}
	return sum / float64(len(t.Words))
}

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe recognises speech in a mono 16 kHz PCM buffer. language is
	// a BCP-47 code hint (e.g. "pt"); empty lets the engine auto-detect.
	//
	// An empty-text Transcript with a nil error means the engine found no
	// speech — callers must treat this as a valid outcome.
	Transcribe(ctx context.Context, b audio.Buffer, language string) (Transcript, error)
}
