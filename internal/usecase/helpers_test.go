package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dialogue/internal/adapter/memstore"
	"dialogue/internal/adapter/retriever"
	"dialogue/internal/domain"
	"dialogue/internal/port"
)

// tableEmbedder returns fixed vectors per text; unknown text maps to the
// zero vector.
type tableEmbedder struct {
	dim   int
	model string
	vecs  map[string][]float32
	err   error
	calls int
}

func newTableEmbedder(dim int, vecs map[string][]float32) *tableEmbedder {
	return &tableEmbedder{dim: dim, model: "table", vecs: vecs}
}

func (e *tableEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vecs[t]
		if !ok {
			v = make([]float32, e.dim)
		}
		out[i] = v
	}
	return out, nil
}

func (e *tableEmbedder) Dimension() int    { return e.dim }
func (e *tableEmbedder) ModelName() string { return e.model }

// failingStore reports a storage failure on every read.
type failingStore struct {
	*memstore.MemoryStore
}

func (s failingStore) ListAll(ctx context.Context) ([]domain.Conversation, error) {
	return nil, fmt.Errorf("list conversations: %w: disk on fire", domain.ErrPersistence)
}

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func seed(t *testing.T, st *memstore.MemoryStore, vecs ...[]float32) []uint64 {
	t.Helper()
	ids := make([]uint64, len(vecs))
	for i, v := range vecs {
		id, err := st.Save(context.Background(), domain.Conversation{
			CharacterAID: "1",
			CharacterBID: "2",
			Dialogue:     fmt.Sprintf("dialogue %d", i),
			Embedding:    v,
			CreatedAt:    fixedNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		ids[i] = id
	}
	return ids
}

func floatEquals(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func newSemantic(st port.ConversationStore, emb port.Embedder) *retriever.SemanticRetriever {
	return retriever.NewSemanticRetriever(st, emb, nil)
}
