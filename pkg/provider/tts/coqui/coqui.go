// Package coqui provides a tts.Provider backed by a local Coqui TTS server
// (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts with
// URL query parameters; the server answers with a complete WAV file, which
// fits the batch feedback-message workflow directly.
package coqui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fonoletra/fonoletra/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultTimeout  = 15 * time.Second
	ttsEndpoint     = "/api/tts"
	detailsEndpoint = "/details"
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithSpeaker sets the speaker_id query parameter for multi-speaker models.
func WithSpeaker(id string) Option {
	return func(p *Provider) { p.speakerID = id }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 15 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements tts.Provider against a Coqui TTS server.
// Safe for concurrent use.
type Provider struct {
	baseURL    string
	speakerID  string
	httpClient *http.Client
}

// New creates a Provider targeting the Coqui server at baseURL
// (e.g., "http://localhost:5002"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("coqui: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize renders req.Text to WAV bytes. The Slow flag is forwarded as a
// reduced speed parameter; servers running models without a speed control
// ignore it.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("coqui: text must not be empty")
	}

	q := url.Values{}
	q.Set("text", req.Text)
	if req.Language != "" {
		q.Set("language_id", req.Language)
	}
	if p.speakerID != "" {
		q.Set("speaker_id", p.speakerID)
	}
	if req.Slow {
		q.Set("speed", "0.7")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+ttsEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("coqui: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read audio body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("coqui: server returned empty audio")
	}
	return data, nil
}

// Healthy probes the server's details endpoint and reports whether it is
// reachable. Useful as a readiness check.
func (p *Provider) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+detailsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("coqui: create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coqui: server unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coqui: server returned HTTP %d", resp.StatusCode)
	}
	return nil
}
