package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWriteError_Envelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteUnauthorized(w, "Authentication failed")

	if w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.Error != "unauthorized" {
		t.Errorf("error code = %q, want unauthorized", resp.Error)
	}
	if resp.Message != "Authentication failed" {
		t.Errorf("message = %q, want Authentication failed", resp.Message)
	}
}

func TestSetRateLimitHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	reset := time.Unix(1700000060, 0)
	SetRateLimitHeaders(w, 100, 0, reset)

	if got := w.Header().Get("X-RateLimit-Limit"); got != "100" {
		t.Errorf("X-RateLimit-Limit = %q, want 100", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
	if got := w.Header().Get("X-RateLimit-Reset"); got != "1700000060" {
		t.Errorf("X-RateLimit-Reset = %q, want 1700000060", got)
	}
}

func TestWriteTooManyRequests_RetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	WriteTooManyRequests(w, "Rate limit exceeded", 42*time.Second)

	if w.Code != 429 {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "42" {
		t.Errorf("Retry-After = %q, want 42", got)
	}
}

func TestWriteTooManyRequests_MinimumRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	WriteTooManyRequests(w, "Rate limit exceeded", 100*time.Millisecond)

	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1 (rounded up)", got)
	}
}
