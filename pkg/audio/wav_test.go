package audio_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/fonoletra/fonoletra/pkg/audio"
)

func TestEncodeDecodeWAV_RoundTrip(t *testing.T) {
	in := audio.Buffer{
		Data:       samplesToBytes([]int16{0, 1000, -1000, 32767, -32768}),
		SampleRate: 16000,
		Channels:   1,
	}

	wavBytes := audio.EncodeWAV(in)
	if !bytes.HasPrefix(wavBytes, []byte("RIFF")) {
		t.Fatal("encoded WAV missing RIFF header")
	}

	out, err := audio.DecodeWAV(wavBytes)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.SampleRate != in.SampleRate || out.Channels != in.Channels {
		t.Errorf("format = %d Hz / %d ch, want %d/%d",
			out.SampleRate, out.Channels, in.SampleRate, in.Channels)
	}
	if !bytes.Equal(out.Data, in.Data) {
		t.Errorf("PCM data changed across the round trip")
	}
}

func TestEncodeDecodeWAV_Stereo(t *testing.T) {
	in := audio.Buffer{
		Data:       samplesToBytes([]int16{100, 200, 300, 400}),
		SampleRate: 44100,
		Channels:   2,
	}

	out, err := audio.DecodeWAV(audio.EncodeWAV(in))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.Channels != 2 || out.SampleRate != 44100 {
		t.Errorf("format = %d Hz / %d ch, want 44100/2", out.SampleRate, out.Channels)
	}
	if !bytes.Equal(out.Data, in.Data) {
		t.Errorf("PCM data changed across the round trip")
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	if _, err := audio.DecodeWAV([]byte("RIFF but not really a wav file")); err == nil {
		t.Error("expected error for malformed WAV data")
	}
	if _, err := audio.DecodeWAV(nil); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestDecode_WAVFastPath(t *testing.T) {
	in := audio.Buffer{
		Data:       samplesToBytes([]int16{5, 6, 7, 8}),
		SampleRate: 16000,
		Channels:   1,
	}
	clip := audio.Clip{Data: audio.EncodeWAV(in), Format: "wav"}

	out, err := audio.Decode(context.Background(), clip)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(out.Data, in.Data) {
		t.Errorf("PCM data changed")
	}
}

func TestDecode_EmptyClip(t *testing.T) {
	if _, err := audio.Decode(context.Background(), audio.Clip{}); err == nil {
		t.Error("expected error for empty clip")
	}
}
