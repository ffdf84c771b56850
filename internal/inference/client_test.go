package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGenerateLiveDecodesFragments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token-1" {
			t.Fatalf("unexpected authorization header %q", auth)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.MaxNewTokens != 32 || req.RepetitionPenalty != 1.15 {
			t.Fatalf("unexpected generation params: %#v", req)
		}
		if req.Device != "cuda:2" {
			t.Fatalf("unexpected device binding %q", req.Device)
		}
		payload := map[string]any{
			"fragments": []any{
				map[string]any{"start": 10.0, "end": 12.0, "text": "a goal ..."},
				map[string]any{"start": 12.0, "end": 14.0, "text": "what a finish"},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "token-1"})
	fragments, err := client.GenerateLive(context.Background(), Request{
		Query:             "comment the video",
		Video:             "videos/a.mp4",
		VideoStart:        10,
		VideoEnd:          14,
		MaxNewTokens:      32,
		RepetitionPenalty: 1.15,
		Device:            "cuda:2",
	})
	if err != nil {
		t.Fatalf("GenerateLive returned error: %v", err)
	}
	if len(fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(fragments))
	}
	if fragments[0].Text != "a goal ..." || fragments[1].End != 14.0 {
		t.Fatalf("unexpected fragments: %#v", fragments)
	}
}

func TestGenerateLiveRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"fragments": []any{}})
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{BaseURL: server.URL},
		WithRetryMaxAttempts(5),
		WithRetryBackoff(10*time.Millisecond, 40*time.Millisecond),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)

	fragments, err := client.GenerateLive(context.Background(), Request{Video: "v.mp4"})
	if err != nil {
		t.Fatalf("GenerateLive returned error: %v", err)
	}
	if fragments == nil {
		fragments = []Fragment{}
	}
	if len(fragments) != 0 {
		t.Fatalf("expected empty fragments, got %#v", fragments)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %v", slept)
	}
	if slept[1] != 20*time.Millisecond {
		t.Fatalf("expected doubled backoff, got %v", slept)
	}
}

func TestGenerateLiveHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"fragments": []any{}})
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{BaseURL: server.URL},
		WithRetryMaxAttempts(2),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)

	if _, err := client.GenerateLive(context.Background(), Request{Video: "v.mp4"}); err != nil {
		t.Fatalf("GenerateLive returned error: %v", err)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected Retry-After sleep of 1s, got %v", slept)
	}
}

func TestGenerateLiveDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad prompt", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, WithRetryMaxAttempts(5))
	if _, err := client.GenerateLive(context.Background(), Request{Video: "v.mp4"}); err == nil {
		t.Fatal("expected error for http 400")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestGenerateLiveSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "video decode failed"},
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.GenerateLive(context.Background(), Request{Video: "v.mp4"})
	if err == nil {
		t.Fatal("expected api error")
	}
}

func TestGenerateLiveRequiresVideo(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := client.GenerateLive(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for missing video reference")
	}
}
