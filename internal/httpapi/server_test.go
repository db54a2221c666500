package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"dialogue/internal/adapter/embedding"
	"dialogue/internal/adapter/memstore"
	"dialogue/internal/adapter/retriever"
	"dialogue/internal/domain"
	"dialogue/internal/port"
	"dialogue/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type brokenEmbedder struct{}

func (brokenEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: model unavailable", domain.ErrEncoding)
}
func (brokenEmbedder) Dimension() int    { return 8 }
func (brokenEmbedder) ModelName() string { return "broken" }

type brokenStore struct {
	*memstore.MemoryStore
}

func (brokenStore) ListAll(ctx context.Context) ([]domain.Conversation, error) {
	return nil, fmt.Errorf("%w: disk full", domain.ErrPersistence)
}

func newTestServer(st port.ConversationStore, emb port.Embedder) *Server {
	evaluator := usecase.NewEvaluator(emb, usecase.CombineMean)
	return New(Deps{
		Store:     st,
		Saver:     usecase.NewSaveUseCase(st, emb, evaluator, nil),
		Searcher:  usecase.NewSearchUseCase(retriever.NewSemanticRetriever(st, emb, nil), usecase.SearchOptions{}),
		Feedback:  usecase.NewFeedbackUseCase(st, nil),
		Evaluator: evaluator,
		Stats:     usecase.NewStatsUseCase(st),
	})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

const rickAndMorty = `{
	"conversation_id": "c-137",
	"location_id": "3",
	"character_a": {"id": "1", "name": "Rick Sanchez", "species": "Human"},
	"character_b": {"id": "2", "name": "Morty Smith", "species": "Human"},
	"dialogue": "Rick: Morty, grab the portal gun.\nMorty: Aw jeez, Rick.",
	"feedback": {"accuracy_a": 4}
}`

func TestHome(t *testing.T) {
	s := newTestServer(memstore.NewMemoryStore(), embedding.NewHashEmbedder(64))
	w := do(t, s, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestServer(memstore.NewMemoryStore(), embedding.NewHashEmbedder(64))

	w := do(t, s, http.MethodPost, "/conversations", rickAndMorty)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created domain.Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 || created.UID != "c-137" {
		t.Errorf("unexpected created conversation: %+v", created)
	}
	if strings.Contains(w.Body.String(), "embedding") {
		t.Error("embedding must not be exposed")
	}

	w = do(t, s, http.MethodGet, fmt.Sprintf("/conversations/%d", created.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = do(t, s, http.MethodPatch, fmt.Sprintf("/conversations/%d/feedback", created.ID), `{"creativity": 4}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated domain.Conversation
	json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Feedback.Creativity == nil || *updated.Feedback.Creativity != 4 {
		t.Errorf("expected creativity 4, got %+v", updated.Feedback)
	}
	if updated.Feedback.AccuracyA == nil || *updated.Feedback.AccuracyA != 4 {
		t.Errorf("accuracy_a must be kept, got %+v", updated.Feedback)
	}

	w = do(t, s, http.MethodGet, "/conversations?limit=5", "")
	var listed []domain.Conversation
	json.Unmarshal(w.Body.Bytes(), &listed)
	if w.Code != http.StatusOK || len(listed) != 1 {
		t.Errorf("expected 1 listed conversation, got %d (status %d)", len(listed), w.Code)
	}

	w = do(t, s, http.MethodPost, "/conversations", rickAndMorty)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate conversation_id, got %d", w.Code)
	}
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(memstore.NewMemoryStore(), embedding.NewHashEmbedder(64))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/conversations", `{"dialogue":`, http.StatusBadRequest},
		{"empty dialogue", http.MethodPost, "/conversations", `{"dialogue":""}`, http.StatusBadRequest},
		{"rating out of range", http.MethodPost, "/conversations", `{"dialogue":"hi","feedback":{"creativity":9}}`, http.StatusBadRequest},
		{"unknown conversation", http.MethodGet, "/conversations/99", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/conversations/abc", "", http.StatusBadRequest},
		{"feedback for unknown conversation", http.MethodPatch, "/conversations/99/feedback", `{"creativity":4}`, http.StatusNotFound},
		{"empty feedback", http.MethodPatch, "/conversations/99/feedback", `{}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/conversations?limit=-1", "", http.StatusBadRequest},
		{"missing query", http.MethodGet, "/search", "", http.StatusBadRequest},
		{"bad k", http.MethodGet, "/search?q=rick&k=zero", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestSearch(t *testing.T) {
	s := newTestServer(memstore.NewMemoryStore(), embedding.NewHashEmbedder(64))

	w := do(t, s, http.MethodGet, "/search?q=portal", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on empty store, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"results":[]`) {
		t.Errorf("expected empty results list, got %s", w.Body.String())
	}

	do(t, s, http.MethodPost, "/conversations", rickAndMorty)
	do(t, s, http.MethodPost, "/conversations", `{"character_a":{"name":"Summer"},"character_b":{"name":"Beth"},"dialogue":"Summer: Mom, the horse surgeon called."}`)

	w = do(t, s, http.MethodGet, "/search?q=portal+gun&k=1", "")
	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Query != "portal gun" || len(resp.Results) != 1 {
		t.Fatalf("unexpected response: %s", w.Body.String())
	}
	if resp.Results[0].Conversation.UID != "c-137" {
		t.Errorf("expected the portal conversation first, got %s", resp.Results[0].Conversation.UID)
	}

	w = do(t, s, http.MethodGet, "/search-conversations?query=portal", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected legacy route to work, got %d", w.Code)
	}
}

func TestSearch_BackendFailures(t *testing.T) {
	w := do(t, newTestServer(memstore.NewMemoryStore(), brokenEmbedder{}), http.MethodGet, "/search?q=x", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 on encoding failure, got %d", w.Code)
	}

	st := brokenStore{memstore.NewMemoryStore()}
	w = do(t, newTestServer(st, embedding.NewHashEmbedder(64)), http.MethodGet, "/search?q=x", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on storage failure, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "disk full") {
		t.Error("internal error details must not leak")
	}
}

func TestEvaluate(t *testing.T) {
	s := newTestServer(memstore.NewMemoryStore(), embedding.NewHashEmbedder(64))

	w := do(t, s, http.MethodPost, "/evaluate", `{"reference":"Rick Sanchez","generated":"Rick Sanchez"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Score float64 `json:"score"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Score < 0.999 {
		t.Errorf("expected identical texts to score ~1, got %f", resp.Score)
	}
}

func TestEvaluate_Characters(t *testing.T) {
	s := newTestServer(memstore.NewMemoryStore(), embedding.NewHashEmbedder(64))

	body := `{"character_a":{"id":"1","name":"Rick Sanchez"},"character_b":{"id":"2","name":"Morty Smith"},"dialogue":"Rick Sanchez and Morty Smith"}`
	w := do(t, s, http.MethodPost, "/evaluate", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var eval domain.Evaluation
	if err := json.Unmarshal(w.Body.Bytes(), &eval); err != nil {
		t.Fatal(err)
	}
	if eval.Rule != "mean" {
		t.Errorf("expected mean rule, got %q", eval.Rule)
	}
	if eval.ScoreA <= 0 || eval.ScoreB <= 0 {
		t.Errorf("expected positive per-character scores, got %+v", eval)
	}
	if d := eval.Combined - (eval.ScoreA+eval.ScoreB)/2; d > 1e-9 || d < -1e-9 {
		t.Errorf("combined %f is not the mean of %f and %f", eval.Combined, eval.ScoreA, eval.ScoreB)
	}

	w = do(t, s, http.MethodPost, "/evaluate", `{"character_a":{"name":"Rick"},"dialogue":"hi"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 with one character, got %d", w.Code)
	}
}
