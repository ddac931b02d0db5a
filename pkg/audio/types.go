// Package audio provides the PCM buffer model shared by the evaluation
// pipeline, along with format conversion, WAV container handling, container
// transcoding for arbitrary uploads, and the speech-recognition enhancement
// chain.
//
// All PCM data is 16-bit signed little-endian. Buffers are plain values;
// none of the functions in this package retain references to their inputs.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// maxAmplitude is the largest magnitude representable by a 16-bit sample.
// Loudness values (dBFS) are expressed relative to this full-scale level.
const maxAmplitude = 32768.0

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Buffer holds decoded 16-bit little-endian PCM audio together with its
// format. The zero value is an empty buffer.
type Buffer struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Format returns the buffer's sample rate and channel count.
func (b Buffer) Format() Format {
	return Format{SampleRate: b.SampleRate, Channels: b.Channels}
}

// SampleCount returns the number of per-channel sample frames in the buffer.
func (b Buffer) SampleCount() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / 2 / b.Channels
}

// Duration returns the playback duration of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := b.SampleCount()
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}

// DurationMs returns the playback duration in whole milliseconds.
func (b Buffer) DurationMs() int {
	return int(b.Duration() / time.Millisecond)
}

// RMS returns the root-mean-square energy of the buffer in PCM sample units
// (0–32767). Returns 0 for an empty buffer.
func (b Buffer) RMS() float64 {
	n := len(b.Data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(b.Data[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// DBFS returns the RMS loudness of the buffer in decibels relative to full
// scale. A silent or empty buffer reports negative infinity.
func (b Buffer) DBFS() float64 {
	rms := b.RMS()
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/maxAmplitude)
}

// Peak returns the largest absolute sample value in the buffer.
func (b Buffer) Peak() float64 {
	n := len(b.Data) / 2
	var peak float64
	for i := 0; i < n; i++ {
		v := math.Abs(float64(int16(binary.LittleEndian.Uint16(b.Data[i*2 : i*2+2]))))
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Samples decodes the PCM data into float64 samples normalised to [-1, 1].
// Multi-channel data is returned interleaved.
func (b Buffer) Samples() []float64 {
	n := len(b.Data) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = float64(int16(binary.LittleEndian.Uint16(b.Data[i*2:i*2+2]))) / maxAmplitude
	}
	return out
}

// applyGain scales every sample by the given linear factor, clamping to the
// int16 range, and returns a new buffer. The input is not modified.
func applyGain(b Buffer, factor float64) Buffer {
	n := len(b.Data) / 2
	out := make([]byte, len(b.Data))
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(b.Data[i*2:i*2+2]))) * factor
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(int16(v)))
	}
	return Buffer{Data: out, SampleRate: b.SampleRate, Channels: b.Channels}
}

// silence returns a buffer of the given duration filled with zero samples in
// the same format as the reference buffer.
func silence(ref Buffer, d time.Duration) Buffer {
	frames := int(int64(ref.SampleRate) * int64(d) / int64(time.Second))
	return Buffer{
		Data:       make([]byte, frames*ref.Channels*2),
		SampleRate: ref.SampleRate,
		Channels:   ref.Channels,
	}
}
