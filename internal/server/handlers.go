package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fonoletra/fonoletra/internal/evaluate"
	"github.com/fonoletra/fonoletra/internal/observe"
	"github.com/fonoletra/fonoletra/internal/rating"
	"github.com/fonoletra/fonoletra/internal/review"
	"github.com/fonoletra/fonoletra/pkg/audio"
	"github.com/fonoletra/fonoletra/pkg/provider/tts"
)

// errorResponse is the JSON body for all non-2xx responses.
type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handlePhoneme(w http.ResponseWriter, r *http.Request) {
	s.handleSpoken(w, r, rating.ModePhoneme)
}

func (s *Server) handleSpelling(w http.ResponseWriter, r *http.Request) {
	s.handleSpoken(w, r, rating.ModeSpelling)
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	s.handleSpoken(w, r, rating.ModeSpeech)
}

// handleSpoken frames the three audio-bearing review endpoints.
func (s *Server) handleSpoken(w http.ResponseWriter, r *http.Request, mode rating.Mode) {
	req, ok := s.reviewRequest(w, r, mode)
	if !ok {
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading audio upload: "+err.Error())
		return
	}
	req.Audio = &audio.Clip{
		Data:   data,
		Format: strings.TrimPrefix(filepath.Ext(header.Filename), "."),
	}

	s.runEvaluation(w, r, req)
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	req, ok := s.reviewRequest(w, r, rating.ModeText)
	if !ok {
		return
	}

	req.Text = r.FormValue("student_text")
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "student_text is required")
		return
	}

	s.runEvaluation(w, r, req)
}

// reviewRequest parses the fields shared by all review endpoints. On
// failure it writes the error response and returns ok=false.
func (s *Server) reviewRequest(w http.ResponseWriter, r *http.Request, mode rating.Mode) (evaluate.Request, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		writeError(w, http.StatusUnauthorized, "Authorization required")
		return evaluate.Request{}, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	err := r.ParseMultipartForm(maxUploadBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "parsing form: "+err.Error())
		return evaluate.Request{}, false
	}

	req := evaluate.Request{
		Mode:          mode,
		FlashcardID:   r.FormValue("flashcard_id"),
		SubID:         r.FormValue("sub_id"),
		Expected:      r.FormValue("expected_text"),
		Language:      r.URL.Query().Get("language"),
		Authorization: auth,
	}
	if req.FlashcardID == "" {
		writeError(w, http.StatusBadRequest, "flashcard_id is required")
		return evaluate.Request{}, false
	}
	if req.Expected == "" {
		writeError(w, http.StatusBadRequest, "expected_text is required")
		return evaluate.Request{}, false
	}

	if v := r.FormValue("time_spent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "time_spent must be a non-negative integer")
			return evaluate.Request{}, false
		}
		req.TimeSpent = n
	}
	if v := r.URL.Query().Get("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 || t > 100 {
			writeError(w, http.StatusBadRequest, "threshold must be a number in [0, 100]")
			return evaluate.Request{}, false
		}
		req.Threshold = t
	}
	return req, true
}

func (s *Server) runEvaluation(w http.ResponseWriter, r *http.Request, req evaluate.Request) {
	res, err := s.currentEvaluator().Evaluate(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, review.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		observe.Logger(r.Context()).Error("evaluation failed",
			"mode", req.Mode, "flashcard_id", req.FlashcardID, "err", err)
		writeError(w, http.StatusInternalServerError, "evaluation failed")
	}
}

// ttsRequest is the JSON body of POST /tts/generate.
type ttsRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Slow     bool   `json:"slow"`
}

// ttsResponse is the JSON body returned by POST /tts/generate.
type ttsResponse struct {
	AudioURL string `json:"audio_url"`
	Cached   bool   `json:"cached"`
}

func (s *Server) handleTTSGenerate(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "speech synthesis is not configured")
		return
	}

	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Language == "" {
		req.Language = "pt"
	}

	tr := tts.Request{Text: req.Text, Language: req.Language, Slow: req.Slow}

	name, hit, err := s.cache.Get(r.Context(), tr)
	if err != nil {
		observe.Logger(r.Context()).Error("synthesis failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "speech synthesis failed")
		return
	}
	s.metrics.RecordCacheRequest(r.Context(), hit)
	writeJSON(w, http.StatusOK, ttsResponse{AudioURL: "/audio/" + name, Cached: hit})
}

func (s *Server) handleAudioFile(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "audio cache is not configured")
		return
	}

	f, err := s.cache.Open(r.PathValue("filename"))
	if err != nil {
		writeError(w, http.StatusNotFound, "audio file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading audio file")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "audio cache is not configured")
		return
	}

	n, err := s.cache.Clear()
	if err != nil {
		observe.Logger(r.Context()).Error("cache clear failed", "err", err)
		writeError(w, http.StatusInternalServerError, "clearing cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"detail":"encoding response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
