package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/corpustools/dedup/internal/core/domain"
)

func TestEmbedSuccess(t *testing.T) {
	var gotModel string
	var gotInput []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel = req.Model
		gotInput = req.Input

		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer server.Close()

	client := New(server.URL, "nomic-embed-text", Options{})
	vectors, err := client.Embed(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if gotModel != "nomic-embed-text" {
		t.Errorf("model = %q", gotModel)
	}
	if len(gotInput) != 2 || gotInput[0] != "alpha" {
		t.Errorf("input = %v", gotInput)
	}
	if len(vectors) != 2 || len(vectors[0]) != 2 {
		t.Fatalf("vectors = %v", vectors)
	}
	if vectors[1][1] != 0.4 {
		t.Errorf("vectors[1][1] = %v", vectors[1][1])
	}
}

func TestEmbedEmptyBatch(t *testing.T) {
	client := New("http://127.0.0.1:0", "m", Options{})
	vectors, err := client.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil vectors, got %v", vectors)
	}
}

func TestEmbedServerErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "missing", Options{})
	_, err := client.Embed(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsKind(err, domain.ErrEmbeddingProvider) {
		t.Errorf("expected embedding provider kind, got %v", err)
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", statusErr.StatusCode)
	}
	if statusErr.Body == "" {
		t.Error("expected body snippet in error")
	}
}

func TestEmbedRetryableStatusWrappedTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "m", Options{})
	_, err := client.Embed(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Errorf("expected temporary kind, got %v", err)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1}},
		})
	}))
	defer server.Close()

	client := New(server.URL, "m", Options{})
	_, err := client.Embed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsKind(err, domain.ErrEmbeddingProvider) {
		t.Errorf("expected embedding provider kind, got %v", err)
	}
}

func TestEmbedCallTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := New(server.URL, "m", Options{CallTimeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := client.Embed(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestEmbedContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := New("http://127.0.0.1:0", "m", Options{})
	_, err := client.Embed(ctx, []string{"x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
