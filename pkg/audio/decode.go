package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Clip is a raw recording as received from a client: container bytes plus a
// hint about the container format (e.g. "webm", "ogg", "wav"). Clips are
// transient; they exist only for the duration of one evaluation request.
type Clip struct {
	Data   []byte
	Format string
}

// decodeTimeout bounds a single ffmpeg transcode invocation.
const decodeTimeout = 10 * time.Second

// Decode turns a Clip into a PCM Buffer. WAV input is parsed directly;
// anything else is transcoded to 16-bit PCM WAV through ffmpeg. Scratch
// files are always removed before Decode returns, on every path.
func Decode(ctx context.Context, clip Clip) (Buffer, error) {
	if len(clip.Data) == 0 {
		return Buffer{}, fmt.Errorf("audio: empty clip")
	}

	// Fast path: the upload is already a RIFF/WAV container.
	if bytes.HasPrefix(clip.Data, []byte("RIFF")) {
		return DecodeWAV(clip.Data)
	}

	return transcode(ctx, clip)
}

// transcode shells out to ffmpeg to convert an arbitrary container to a
// 16-bit PCM WAV, then parses the result. The input format hint, when
// present, is used for the scratch file suffix so ffmpeg's probing has a
// second signal beyond the stream content.
func transcode(ctx context.Context, clip Clip) (Buffer, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return Buffer{}, fmt.Errorf("audio: ffmpeg not available for %q input: %w", clip.Format, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, decodeTimeout)
		defer cancel()
	}

	suffix := clip.Format
	if suffix == "" {
		suffix = "bin"
	}
	id := uuid.NewString()
	inPath := filepath.Join(os.TempDir(), fmt.Sprintf("clip-%s.%s", id, suffix))
	outPath := filepath.Join(os.TempDir(), fmt.Sprintf("clip-%s.wav", id))
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(inPath, clip.Data, 0o600); err != nil {
		return Buffer{}, fmt.Errorf("audio: write scratch file: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inPath,
		"-c:a", "pcm_s16le",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return Buffer{}, fmt.Errorf("audio: transcode: %w", ctx.Err())
		}
		return Buffer{}, fmt.Errorf("audio: ffmpeg failed: %w (%s)", err, bytes.TrimSpace(out))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: read transcoded file: %w", err)
	}
	return DecodeWAV(data)
}
