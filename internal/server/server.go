// Package server exposes the evaluation engine over HTTP. The handlers do
// request framing only — multipart parsing, field validation, and status
// mapping — and delegate all semantics to the evaluate orchestrator.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fonoletra/fonoletra/internal/evaluate"
	"github.com/fonoletra/fonoletra/internal/health"
	"github.com/fonoletra/fonoletra/internal/observe"
	"github.com/fonoletra/fonoletra/internal/ttscache"
)

// Evaluator is the orchestration surface the server depends on.
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluate.Request) (evaluate.Result, error)
}

// maxUploadBytes bounds the multipart form size; a minute of 16 kHz mono
// WAV is under 2 MB, so this leaves plenty of headroom.
const maxUploadBytes = 20 << 20

// Server is the HTTP front end. Safe for concurrent use; the evaluator can
// be swapped at runtime for config hot-reload.
type Server struct {
	mu        sync.RWMutex
	evaluator Evaluator

	cache   *ttscache.Cache
	health  *health.Handler
	metrics *observe.Metrics
	http    *http.Server
}

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithCache equips the server with the synthesized-audio cache backing the
// /tts and /audio endpoints. Without one, those endpoints report 404.
func WithCache(c *ttscache.Cache) Option {
	return func(s *Server) { s.cache = c }
}

// WithHealth installs the health handler serving /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// New builds a [Server] listening on addr.
func New(addr string, ev Evaluator, metrics *observe.Metrics, opts ...Option) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	s := &Server{evaluator: ev, metrics: metrics}
	for _, o := range opts {
		o(s)
	}
	if s.health == nil {
		s.health = health.New()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /audio-flashcards/review/fonema", s.handlePhoneme)
	mux.HandleFunc("POST /audio-flashcards/review/spelling", s.handleSpelling)
	mux.HandleFunc("POST /audio-flashcards/review/audio", s.handleSpeech)
	mux.HandleFunc("POST /audio-flashcards/review/text", s.handleText)
	mux.HandleFunc("POST /tts/generate", s.handleTTSGenerate)
	mux.HandleFunc("GET /audio/{filename}", s.handleAudioFile)
	mux.HandleFunc("DELETE /cache/clear", s.handleCacheClear)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetEvaluator swaps the orchestrator serving subsequent requests. Used by
// the config watcher to apply threshold changes without restart.
func (s *Server) SetEvaluator(ev Evaluator) {
	s.mu.Lock()
	s.evaluator = ev
	s.mu.Unlock()
}

func (s *Server) currentEvaluator() Evaluator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evaluator
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, certFile, keyFile string) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if certFile != "" && keyFile != "" {
			err = s.http.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = s.http.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("http server listening", "addr", s.http.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
