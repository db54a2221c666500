package retriever

import (
	"context"
	"fmt"

	"dialogue/internal/adapter/store"
	"dialogue/internal/domain"
	"dialogue/internal/port"
)

// SemanticRetriever compares a query embedding against every stored
// conversation. There is no index; each call scans the full corpus.
type SemanticRetriever struct {
	store    port.ConversationStore
	embedder port.Embedder
	ranker   *CosineRanker
}

func NewSemanticRetriever(
	store port.ConversationStore,
	embedder port.Embedder,
	ranker *CosineRanker,
) *SemanticRetriever {
	if ranker == nil {
		ranker = NewCosineRanker()
	}
	return &SemanticRetriever{
		store:    store,
		embedder: embedder,
		ranker:   ranker,
	}
}

func (r *SemanticRetriever) Search(ctx context.Context, query string, k int) ([]domain.ScoredConversation, error) {
	if r.store == nil || r.embedder == nil {
		return nil, fmt.Errorf("semantic search not available: store or embedder not configured")
	}
	if k <= 0 {
		return []domain.ScoredConversation{}, nil
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for 1 query", domain.ErrEncoding, len(embeddings))
	}
	queryVec := embeddings[0]

	info, err := r.store.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store info: %w", err)
	}
	// vectors from another model are not comparable even at equal dimension
	wanted := domain.StoreInfo{Model: r.embedder.ModelName(), Dimension: len(queryVec)}
	if check := store.CheckMigration(info, wanted); check.NeedsReembed {
		return nil, fmt.Errorf("%w: %s; run 'dialogue reembed' first", domain.ErrDimensionMismatch, check.Reason)
	}

	convs, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if len(convs) == 0 {
		return []domain.ScoredConversation{}, nil
	}

	candidates := make([]Candidate, len(convs))
	for i, c := range convs {
		candidates[i] = Candidate{ID: c.ID, Vector: c.Embedding}
	}

	ranked := r.ranker.Rank(queryVec, candidates)
	if k > len(ranked) {
		k = len(ranked)
	}

	results := make([]domain.ScoredConversation, k)
	for i := 0; i < k; i++ {
		results[i] = domain.ScoredConversation{
			Conversation: convs[ranked[i].Index],
			Score:        ranked[i].Score,
		}
	}

	return results, nil
}
