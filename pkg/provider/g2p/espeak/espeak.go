// Package espeak provides a g2p.Provider backed by the espeak-ng binary.
//
// espeak-ng ships no Go bindings; the provider drives it as an external
// process, one short-lived invocation per conversion. That matches how
// phonemizer front-ends drive it and keeps the service free of CGO.
package espeak

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/fonoletra/fonoletra/pkg/provider/g2p"
)

// Compile-time assertion that Provider implements g2p.Provider.
var _ g2p.Provider = (*Provider)(nil)

const (
	defaultBinary  = "espeak-ng"
	defaultTimeout = 5 * time.Second
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBinary overrides the espeak-ng binary name or path.
func WithBinary(path string) Option {
	return func(p *Provider) { p.binary = path }
}

// WithTimeout bounds a single conversion. Defaults to 5 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// Provider converts text to IPA phoneme strings via espeak-ng.
// Safe for concurrent use; each call spawns its own process.
type Provider struct {
	binary  string
	timeout time.Duration
}

// New returns a Provider. It does not verify that the binary exists; use
// [Provider.Available] at startup for that.
func New(opts ...Option) *Provider {
	p := &Provider{binary: defaultBinary, timeout: defaultTimeout}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Available reports whether the espeak-ng binary can be found on PATH.
func (p *Provider) Available() bool {
	_, err := exec.LookPath(p.binary)
	return err == nil
}

// Phonemes runs espeak-ng in quiet IPA mode and returns the phoneme string
// for text. Stress markers are stripped so that comparisons depend only on
// phoneme identity.
func (p *Provider) Phonemes(ctx context.Context, text, language string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if _, err := exec.LookPath(p.binary); err != nil {
		return "", fmt.Errorf("espeak: %w: %w", g2p.ErrUnavailable, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if language == "" {
		language = "pt"
	}

	cmd := exec.CommandContext(ctx, p.binary, "-q", "--ipa", "-v", language, text)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("espeak: %w", ctx.Err())
		}
		return "", fmt.Errorf("espeak: %w: %v (%s)", g2p.ErrUnavailable, err, bytes.TrimSpace(stderr.Bytes()))
	}

	return cleanPhonemes(out.String()), nil
}

// cleanPhonemes collapses espeak-ng output to a single line and drops
// stress and length markers.
func cleanPhonemes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	for _, marker := range []string{"ˈ", "ˌ", "ː"} {
		s = strings.ReplaceAll(s, marker, "")
	}
	return strings.Join(strings.Fields(s), " ")
}
