package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dialogue/internal/domain"
)

func fakeEmbeddingServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i, in := range req.Input {
			vec := make([]float32, dim)
			vec[0] = float32(len(in))
			data[i] = item{Object: "embedding", Embedding: vec, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := fakeEmbeddingServer(t, 3)
	defer srv.Close()

	e, err := NewOllamaEmbedder("all-minilm", srv.URL, 3)
	if err != nil {
		t.Fatal(err)
	}

	vecs, err := e.Embed(context.Background(), []string{"hello", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 5 {
		t.Errorf("expected first component 5, got %f", vecs[0][0])
	}
	if vecs[1][0] != 1 {
		t.Errorf("expected empty text to be sent as a single space, got length %f", vecs[1][0])
	}
	if e.ModelName() != "all-minilm" || e.Dimension() != 3 {
		t.Errorf("unexpected model/dimension: %s/%d", e.ModelName(), e.Dimension())
	}
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	srv := fakeEmbeddingServer(t, 5)
	defer srv.Close()

	e, _ := NewOllamaEmbedder("all-minilm", srv.URL, 3)
	_, err := e.Embed(context.Background(), []string{"hello"})
	if !errors.Is(err, domain.ErrEncoding) {
		t.Errorf("expected ErrEncoding, got %v", err)
	}
}

func TestOpenAIEmbedder_BackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	e, _ := NewOllamaEmbedder("all-minilm", srv.URL, 3)
	_, err := e.Embed(context.Background(), []string{"hello"})
	if !errors.Is(err, domain.ErrEncoding) {
		t.Errorf("expected ErrEncoding, got %v", err)
	}
}

func TestNewOpenAIEmbedder_MissingKey(t *testing.T) {
	t.Setenv("DIALOGUE_TEST_MISSING_KEY", "")
	if _, err := NewOpenAIEmbedder("DIALOGUE_TEST_MISSING_KEY", "text-embedding-3-small", 0); err == nil {
		t.Error("expected error when API key is missing")
	}
}

func TestKnownDimension(t *testing.T) {
	if d := knownDimension("all-minilm", 1); d != 384 {
		t.Errorf("expected 384, got %d", d)
	}
	if d := knownDimension("something-else", 42); d != 42 {
		t.Errorf("expected fallback 42, got %d", d)
	}
}
