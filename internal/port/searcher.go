package port

import (
	"context"

	"dialogue/internal/domain"
)

// Searcher answers free-text queries over stored conversations.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]domain.ScoredConversation, error)
}

// SearchCache stores search results keyed by query and top-k.
type SearchCache interface {
	// Get returns the cached results on a hit. On a miss gen is the cache
	// generation the caller must hand back to Put.
	Get(ctx context.Context, query string, topK int) (results []domain.ScoredConversation, gen uint64, hit bool)
	// Put stores results computed at generation gen. Results from a
	// generation that has since been invalidated are never served.
	Put(ctx context.Context, gen uint64, query string, topK int, results []domain.ScoredConversation)
	// Invalidate drops every cached result. Called after each store mutation.
	Invalidate(ctx context.Context)
}
