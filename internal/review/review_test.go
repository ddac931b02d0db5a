package review_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fonoletra/fonoletra/internal/review"
)

func TestSubmit_PostsPayloadAndToken(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := review.NewClient(srv.URL)
	err := c.Submit(context.Background(), review.Submission{
		FlashcardID: "card-1",
		SubID:       "sub-2",
		Rating:      3,
		TimeSpent:   12,
	}, "Bearer tok-123")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if gotPath != "/api/memoria/revisao" {
		t.Errorf("path = %q, want /api/memoria/revisao", gotPath)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want the caller token untouched", gotAuth)
	}
	if gotBody["flashcard_id"] != "card-1" || gotBody["rating"] != float64(3) || gotBody["time_spent"] != float64(12) {
		t.Errorf("body = %v", gotBody)
	}
}

func TestSubmit_OmitsEmptySubID(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer srv.Close()

	c := review.NewClient(srv.URL)
	if err := c.Submit(context.Background(), review.Submission{FlashcardID: "card-1", Rating: 1}, ""); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, present := gotBody["sub_id"]; present {
		t.Errorf("sub_id present in body %v, want omitted when empty", gotBody)
	}
}

func TestSubmit_RejectionIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := review.NewClient(srv.URL)
	err := c.Submit(context.Background(), review.Submission{FlashcardID: "card-1", Rating: 1}, "t")
	if !errors.Is(err, review.ErrUnavailable) {
		t.Errorf("Submit() error = %v, want ErrUnavailable", err)
	}
}

func TestSubmit_ConnectionFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	c := review.NewClient(srv.URL)
	err := c.Submit(context.Background(), review.Submission{FlashcardID: "card-1", Rating: 1}, "t")
	if !errors.Is(err, review.ErrUnavailable) {
		t.Errorf("Submit() error = %v, want ErrUnavailable", err)
	}
}
