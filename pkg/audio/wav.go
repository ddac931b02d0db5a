package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// bitsPerSample is fixed at 16 for all PCM handled by this package.
const bitsPerSample = 16

// DecodeWAV parses a RIFF/WAV container and returns its PCM content as a
// Buffer. Samples with bit depths other than 16 are rescaled to 16-bit.
func DecodeWAV(data []byte) (Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Buffer{}, fmt.Errorf("audio: not a valid WAV file")
	}

	dur, err := dec.Duration()
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	frames := int(dur.Seconds()*float64(dec.SampleRate) + 0.5)
	if frames == 0 {
		return Buffer{}, fmt.Errorf("audio: wav file contains no samples")
	}

	pcm := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: int(dec.NumChans),
			SampleRate:  int(dec.SampleRate),
		},
		Data:           make([]int, frames*int(dec.NumChans)),
		SourceBitDepth: int(dec.BitDepth),
	}
	n, err := dec.PCMBuffer(pcm)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if n == 0 {
		return Buffer{}, fmt.Errorf("audio: wav file contains no samples")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	shift := depth - bitsPerSample

	samples := pcm.Data[:n]
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			v <<= -shift
		}
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(int16(v)))
	}

	return Buffer{
		Data:       out,
		SampleRate: pcm.Format.SampleRate,
		Channels:   pcm.Format.NumChannels,
	}, nil
}

// EncodeWAV wraps the buffer's raw 16-bit little-endian PCM data in a
// standard RIFF/WAV container. The returned byte slice is suitable for
// direct inclusion in a multipart form upload.
func EncodeWAV(b Buffer) []byte {
	byteRate := b.SampleRate * b.Channels * bitsPerSample / 8
	blockAlign := b.Channels * bitsPerSample / 8
	dataSize := len(b.Data)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(b.Channels)) // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(b.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], b.Data)

	return buf
}
