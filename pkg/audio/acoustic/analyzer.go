// Package acoustic implements the pre-transcription quality gate: a cheap
// waveform analysis that decides whether a recording plausibly contains
// usable speech before the cost of transcription is spent.
package acoustic

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/fonoletra/fonoletra/pkg/audio"
)

const (
	// frameSize and hopSize define the short-time analysis grid for RMS,
	// zero-crossing rate, and the spectral centroid.
	frameSize = 2048
	hopSize   = 512

	// voiceEnergyThreshold is the mean frame RMS (on [-1, 1] samples) above
	// which a clip is considered to contain voice.
	voiceEnergyThreshold = 0.01

	// minSpeechSeconds and maxSpeechSeconds bound plausible answer
	// durations. Shorter clips are near-silent fragments; longer ones are
	// accidental recordings or background noise captures.
	minSpeechSeconds = 0.2
	maxSpeechSeconds = 10.0
)

// Profile summarises the acoustic properties of a recording. It is produced
// once per evaluation and never mutated afterwards.
type Profile struct {
	// Energy is the mean short-time RMS of the normalised waveform.
	Energy float64 `json:"energy"`

	// DurationSeconds is the clip length in seconds.
	DurationSeconds float64 `json:"duration_seconds"`

	// ZeroCrossingRate is the mean fraction of adjacent-sample sign changes
	// per frame. Voiced speech sits well below pure noise.
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`

	// SpectralCentroid is the magnitude-weighted mean frequency in Hz.
	// Informational only; it does not gate.
	SpectralCentroid float64 `json:"spectral_centroid"`

	// HasVoice reports whether Energy exceeds the voice threshold.
	HasVoice bool `json:"has_voice"`

	// QualityOK reports whether the clip should be transcribed at all:
	// voice present and duration within the plausible answer range.
	QualityOK bool `json:"quality_ok"`

	// Err carries the decode failure message when analysis could not run.
	// A non-empty Err always comes with QualityOK == false.
	Err string `json:"error,omitempty"`
}

// FailedProfile returns the Profile reported when the waveform could not be
// decoded. It is a terminal, non-fatal outcome: the caller routes it to the
// "no usable audio" feedback path.
func FailedProfile(err error) Profile {
	return Profile{QualityOK: false, Err: err.Error()}
}

// Analyze computes the acoustic profile of a PCM buffer.
func Analyze(b audio.Buffer) Profile {
	samples := b.Samples()
	duration := b.Duration().Seconds()

	p := Profile{
		Energy:           meanFrameRMS(samples),
		DurationSeconds:  duration,
		ZeroCrossingRate: meanZeroCrossingRate(samples),
		SpectralCentroid: spectralCentroid(samples, b.SampleRate),
	}
	p.HasVoice = p.Energy > voiceEnergyThreshold
	p.QualityOK = p.HasVoice && duration > minSpeechSeconds && duration < maxSpeechSeconds
	return p
}

// frames iterates the short-time analysis grid, calling fn with each frame.
// A signal shorter than one frame is processed as a single partial frame.
func frames(samples []float64, fn func(frame []float64)) {
	if len(samples) == 0 {
		return
	}
	if len(samples) < frameSize {
		fn(samples)
		return
	}
	for start := 0; start+frameSize <= len(samples); start += hopSize {
		fn(samples[start : start+frameSize])
	}
}

func meanFrameRMS(samples []float64) float64 {
	var sum float64
	var n int
	frames(samples, func(frame []float64) {
		var acc float64
		for _, s := range frame {
			acc += s * s
		}
		sum += math.Sqrt(acc / float64(len(frame)))
		n++
	})
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func meanZeroCrossingRate(samples []float64) float64 {
	var sum float64
	var n int
	frames(samples, func(frame []float64) {
		if len(frame) < 2 {
			return
		}
		var crossings int
		for i := 1; i < len(frame); i++ {
			if (frame[i-1] >= 0) != (frame[i] >= 0) {
				crossings++
			}
		}
		sum += float64(crossings) / float64(len(frame)-1)
		n++
	})
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// spectralCentroid returns the mean magnitude-weighted frequency across
// Hamming-windowed frames. Frames with no spectral energy are skipped.
func spectralCentroid(samples []float64, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}

	var sum float64
	var n int
	frames(samples, func(frame []float64) {
		windowed := make([]float64, len(frame))
		win := hamming(len(frame))
		for i, s := range frame {
			windowed[i] = s * win[i]
		}

		spectrum := fft.FFTReal(windowed)
		half := len(spectrum) / 2
		if half == 0 {
			return
		}

		binWidth := float64(sampleRate) / float64(len(frame))
		var weighted, magSum float64
		for i := 0; i < half; i++ {
			mag := cmplx.Abs(spectrum[i])
			weighted += float64(i) * binWidth * mag
			magSum += mag
		}
		if magSum == 0 {
			return
		}
		sum += weighted / magSum
		n++
	})
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func hamming(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
