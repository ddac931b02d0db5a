// Package ttscache provides a content-addressed file cache in front of a
// speech synthesis provider. Repeated requests for the same utterance are
// served from disk, and concurrent first requests are collapsed into a
// single synthesis call.
package ttscache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/fonoletra/fonoletra/pkg/provider/tts"
)

const fileExt = ".wav"

// Cache synthesizes speech through a [tts.Provider] and stores the result
// as a file named by the hash of the request. Safe for concurrent use.
type Cache struct {
	dir   string
	tts   tts.Provider
	group singleflight.Group
}

// New returns a [Cache] writing to dir, creating it if necessary.
func New(dir string, p tts.Provider) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audio cache dir: %w", err)
	}
	return &Cache{dir: dir, tts: p}, nil
}

// Filename returns the cache file name a request maps to, without
// touching the provider or the disk.
func (c *Cache) Filename(req tts.Request) string {
	sum := md5.Sum([]byte(req.Text + "\x00" + req.Language + "\x00" + fmt.Sprint(req.Slow)))
	return hex.EncodeToString(sum[:]) + fileExt
}

// Get returns the cache file name for req, synthesizing and storing the
// audio on a miss. The hit flag reports whether the audio was already on
// disk. Concurrent misses for the same request share one synthesis call.
func (c *Cache) Get(ctx context.Context, req tts.Request) (string, bool, error) {
	name := c.Filename(req)
	path := filepath.Join(c.dir, name)
	if _, err := os.Stat(path); err == nil {
		return name, true, nil
	}

	_, err, _ := c.group.Do(name, func() (any, error) {
		if _, err := os.Stat(path); err == nil {
			return nil, nil
		}
		audio, err := c.tts.Synthesize(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("synthesizing %q: %w", req.Text, err)
		}
		// Write-then-rename so readers never observe a partial file.
		tmp, err := os.CreateTemp(c.dir, "tts-*"+fileExt)
		if err != nil {
			return nil, fmt.Errorf("staging cache file: %w", err)
		}
		if _, err := tmp.Write(audio); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return nil, fmt.Errorf("writing cache file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return nil, fmt.Errorf("closing cache file: %w", err)
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			os.Remove(tmp.Name())
			return nil, fmt.Errorf("committing cache file: %w", err)
		}
		slog.Debug("tts cache miss filled", "file", name, "bytes", len(audio))
		return nil, nil
	})
	if err != nil {
		return "", false, err
	}
	return name, false, nil
}

// Open returns the cached file for name. The name must be one previously
// produced by this cache; anything containing a path separator is
// rejected.
func (c *Cache) Open(name string) (*os.File, error) {
	if name != filepath.Base(name) || !strings.HasSuffix(name, fileExt) {
		return nil, fmt.Errorf("invalid cache file name %q", name)
	}
	return os.Open(filepath.Join(c.dir, name))
}

// Clear removes all cached audio files and reports how many were deleted.
func (c *Cache) Clear() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("listing audio cache: %w", err)
	}
	var removed int
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("removing %s: %w", e.Name(), err)
		}
		removed++
	}
	slog.Info("audio cache cleared", "files", removed)
	return removed, nil
}
