// Package mock provides an in-memory review submitter for tests.
package mock

import (
	"context"
	"sync"

	"github.com/fonoletra/fonoletra/internal/review"
)

// SubmitCall records the arguments of one Submit invocation.
type SubmitCall struct {
	Submission    review.Submission
	Authorization string
}

// Submitter records submissions and returns a configurable error. The
// zero value accepts everything.
type Submitter struct {
	mu    sync.Mutex
	Err   error
	Calls []SubmitCall
}

var _ review.Submitter = (*Submitter)(nil)

// Submit implements [review.Submitter].
func (s *Submitter) Submit(_ context.Context, sub review.Submission, authorization string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, SubmitCall{Submission: sub, Authorization: authorization})
	return s.Err
}

// CallCount returns the number of recorded submissions.
func (s *Submitter) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}
