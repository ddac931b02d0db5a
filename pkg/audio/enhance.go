package audio

import (
	"log/slog"
	"math"
	"time"
)

// Default enhancement parameters, tuned for short, quiet recordings made by
// children on consumer microphones.
const (
	// defaultSilenceThresholdDB is the loudness below which a window counts
	// as silence when trimming clip edges.
	defaultSilenceThresholdDB = -50.0

	// defaultMinSilenceMs is the minimum sustained silence duration at a
	// clip edge before anything is trimmed.
	defaultMinSilenceMs = 200

	// defaultEdgePaddingMs is how much silence is retained at each trimmed
	// edge so the first and last phoneme are not clipped.
	defaultEdgePaddingMs = 100

	// defaultTargetDBFS is the loudness floor; quieter clips receive linear
	// gain up to exactly this level.
	defaultTargetDBFS = -15.0

	// defaultMinDurationMs is the minimum usable clip length. Shorter clips
	// are concatenated with themselves; speech engines transcribe
	// sub-second utterances poorly, and single-phoneme answers are often
	// under 300 ms.
	defaultMinDurationMs = 800

	// defaultRepeatGapMs separates the repetitions inserted for short clips.
	defaultRepeatGapMs = 100

	// peakHeadroomDB is kept below full scale during peak normalisation.
	peakHeadroomDB = 0.1

	// silenceWindowMs is the analysis window used for edge trimming.
	silenceWindowMs = 10
)

// EnhanceOption is a functional option for configuring an [Enhancer].
type EnhanceOption func(*Enhancer)

// WithSilenceThreshold sets the edge-trim silence threshold in dBFS.
// Default: −50.
func WithSilenceThreshold(db float64) EnhanceOption {
	return func(e *Enhancer) { e.silenceThresholdDB = db }
}

// WithTargetLoudness sets the loudness floor in dBFS applied by the gain
// correction step. Default: −15.
func WithTargetLoudness(db float64) EnhanceOption {
	return func(e *Enhancer) { e.targetDBFS = db }
}

// WithMinDuration sets the minimum output duration in milliseconds enforced
// by repetition. Default: 800.
func WithMinDuration(ms int) EnhanceOption {
	return func(e *Enhancer) { e.minDurationMs = ms }
}

// WithOutputFormat sets the output sample rate and channel count.
// Default: 16 kHz mono.
func WithOutputFormat(f Format) EnhanceOption {
	return func(e *Enhancer) { e.target = f }
}

// Enhancer conditions a raw recording so that downstream transcription has
// the best chance of succeeding. Every step is total: any input, including
// pure silence, produces an output buffer. Enhancer is read-only after
// construction and safe for concurrent use.
type Enhancer struct {
	silenceThresholdDB float64
	minSilenceMs       int
	edgePaddingMs      int
	targetDBFS         float64
	minDurationMs      int
	repeatGapMs        int
	target             Format
}

// NewEnhancer returns an [Enhancer] configured with the supplied options.
func NewEnhancer(opts ...EnhanceOption) *Enhancer {
	e := &Enhancer{
		silenceThresholdDB: defaultSilenceThresholdDB,
		minSilenceMs:       defaultMinSilenceMs,
		edgePaddingMs:      defaultEdgePaddingMs,
		targetDBFS:         defaultTargetDBFS,
		minDurationMs:      defaultMinDurationMs,
		repeatGapMs:        defaultRepeatGapMs,
		target:             Format{SampleRate: 16000, Channels: 1},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Process runs the enhancement chain in fixed order: peak normalisation,
// edge silence trimming, gain correction, minimum-duration enforcement, and
// conversion to the target format.
func (e *Enhancer) Process(b Buffer) Buffer {
	slog.Debug("audio enhance: input",
		"dbfs", b.DBFS(),
		"duration_ms", b.DurationMs(),
		"sample_rate", b.SampleRate,
		"channels", b.Channels,
	)

	b = normalizePeak(b)
	b = e.stripEdgeSilence(b)
	b = e.correctGain(b)
	b = e.enforceMinDuration(b)
	b = Convert(b, e.target)

	slog.Debug("audio enhance: output",
		"dbfs", b.DBFS(),
		"duration_ms", b.DurationMs(),
	)
	return b
}

// normalizePeak scales the buffer so its largest sample sits just below full
// scale. Silent buffers pass through unchanged.
func normalizePeak(b Buffer) Buffer {
	peak := b.Peak()
	if peak == 0 {
		return b
	}
	target := maxAmplitude * math.Pow(10, -peakHeadroomDB/20)
	return applyGain(b, target/peak)
}

// stripEdgeSilence removes leading and trailing silence sustained for at
// least the configured minimum, retaining the configured padding at each
// trimmed edge. A buffer with no audible window passes through unchanged;
// the acoustic quality gate is responsible for rejecting it.
func (e *Enhancer) stripEdgeSilence(b Buffer) Buffer {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return b
	}
	winFrames := b.SampleRate * silenceWindowMs / 1000
	if winFrames == 0 {
		return b
	}
	winBytes := winFrames * b.Channels * 2
	total := len(b.Data) / winBytes
	if total == 0 {
		return b
	}

	audible := func(w int) bool {
		win := Buffer{
			Data:       b.Data[w*winBytes : (w+1)*winBytes],
			SampleRate: b.SampleRate,
			Channels:   b.Channels,
		}
		return win.DBFS() >= e.silenceThresholdDB
	}

	first, last := -1, -1
	for w := 0; w < total; w++ {
		if audible(w) {
			first = w
			break
		}
	}
	if first < 0 {
		return b
	}
	for w := total - 1; w >= 0; w-- {
		if audible(w) {
			last = w
			break
		}
	}

	minWins := e.minSilenceMs / silenceWindowMs
	padWins := e.edgePaddingMs / silenceWindowMs

	start := 0
	if first >= minWins {
		start = (first - padWins) * winBytes
	}
	end := len(b.Data)
	trailing := total - 1 - last
	if trailing >= minWins {
		end = (last + 1 + padWins) * winBytes
		if end > len(b.Data) {
			end = len(b.Data)
		}
	}

	return Buffer{Data: b.Data[start:end], SampleRate: b.SampleRate, Channels: b.Channels}
}

// correctGain applies linear gain to reach exactly the target loudness when
// the buffer is quieter than it. Louder buffers are left alone.
func (e *Enhancer) correctGain(b Buffer) Buffer {
	db := b.DBFS()
	if math.IsInf(db, -1) || db >= e.targetDBFS {
		return b
	}
	gain := e.targetDBFS - db
	slog.Debug("audio enhance: gain correction", "gain_db", gain)
	return applyGain(b, math.Pow(10, gain/20))
}

// enforceMinDuration concatenates the signal with itself twice more,
// separated by short gaps, when it is shorter than the minimum usable
// length.
func (e *Enhancer) enforceMinDuration(b Buffer) Buffer {
	if b.DurationMs() >= e.minDurationMs || len(b.Data) == 0 {
		return b
	}

	gap := silence(b, time.Duration(e.repeatGapMs)*time.Millisecond)
	out := make([]byte, 0, len(b.Data)*3+len(gap.Data)*2)
	out = append(out, b.Data...)
	out = append(out, gap.Data...)
	out = append(out, b.Data...)
	out = append(out, gap.Data...)
	out = append(out, b.Data...)

	slog.Debug("audio enhance: short clip repeated",
		"original_ms", b.DurationMs(),
		"result_ms", Buffer{Data: out, SampleRate: b.SampleRate, Channels: b.Channels}.DurationMs(),
	)
	return Buffer{Data: out, SampleRate: b.SampleRate, Channels: b.Channels}
}
