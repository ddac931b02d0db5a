// Package review submits flashcard review results to the scheduling
// backend. A lost submission silently corrupts the learner's
// spaced-repetition schedule, so failures here always surface as errors
// rather than being swallowed.
package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable marks submissions that failed because the scheduling
// backend could not be reached or rejected the request. Callers map it to
// a service-unavailable condition.
var ErrUnavailable = errors.New("review backend unavailable")

const (
	submitPath     = "/api/memoria/revisao"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 2 << 10
)

// Submission is one review update for the scheduler.
type Submission struct {
	FlashcardID string `json:"flashcard_id"`
	// SubID addresses a sub-item of a compound flashcard; omitted when
	// empty.
	SubID string `json:"sub_id,omitempty"`
	// Rating is the 1-4 mastery score.
	Rating int `json:"rating"`
	// TimeSpent is whole seconds the learner spent on the card.
	TimeSpent int `json:"time_spent"`
}

// Submitter posts review results. Implementations must be safe for
// concurrent use.
type Submitter interface {
	// Submit records one review. authorization is the caller's bearer
	// token, passed through untouched.
	Submit(ctx context.Context, s Submission, authorization string) error
}

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithTimeout sets the per-submission timeout. Default 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client submits reviews to the scheduling backend over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

var _ Submitter = (*Client)(nil)

// NewClient returns a [Client] for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
		http:    http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit implements [Submitter].
func (c *Client) Submit(ctx context.Context, s Submission, authorization string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding review submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+submitPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building review request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	slog.Debug("review submitted",
		"flashcard_id", s.FlashcardID,
		"rating", s.Rating,
		"time_spent", s.TimeSpent)
	return nil
}
