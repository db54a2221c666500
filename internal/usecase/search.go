package usecase

import (
	"context"

	"dialogue/internal/adapter/cache"
	"dialogue/internal/adapter/retriever"
	"dialogue/internal/domain"
	"dialogue/internal/port"
)

// SearchOptions tunes SearchUseCase. Zero values disable the optional steps.
type SearchOptions struct {
	DefaultTopK       int
	MaxTopK           int
	MinScoreThreshold float64 // Filter results below this score (0 = disabled)
	MMR               *retriever.MMRReranker
	Cache             port.SearchCache
}

// SearchUseCase ranks stored conversations against a free-text query.
type SearchUseCase struct {
	pipeline    port.Searcher
	defaultTopK int
	maxTopK     int
}

func NewSearchUseCase(searcher port.Searcher, opts SearchOptions) *SearchUseCase {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}

	var pipeline port.Searcher = &rankPipeline{
		searcher: searcher,
		mmr:      opts.MMR,
		minScore: opts.MinScoreThreshold,
	}
	if opts.Cache != nil {
		pipeline = cache.NewCachedSearcher(pipeline, opts.Cache)
	}

	return &SearchUseCase{
		pipeline:    pipeline,
		defaultTopK: opts.DefaultTopK,
		maxTopK:     opts.MaxTopK,
	}
}

// Search returns up to topK conversations, best first. topK <= 0 means the
// default. An empty store yields an empty, non-nil slice.
func (u *SearchUseCase) Search(ctx context.Context, query string, topK int) ([]domain.ScoredConversation, error) {
	if topK <= 0 {
		topK = u.defaultTopK
	}
	if u.maxTopK > 0 && topK > u.maxTopK {
		topK = u.maxTopK
	}
	return u.pipeline.Search(ctx, query, topK)
}

type rankPipeline struct {
	searcher port.Searcher
	mmr      *retriever.MMRReranker
	minScore float64
}

func (p *rankPipeline) Search(ctx context.Context, query string, topK int) ([]domain.ScoredConversation, error) {
	fetch := topK
	if p.mmr != nil {
		fetch = topK * 2
	}

	results, err := p.searcher.Search(ctx, query, fetch)
	if err != nil {
		return nil, err
	}

	if p.mmr != nil && len(results) > 0 {
		results = p.mmr.Rerank(results, topK)
	}
	if p.minScore > 0 {
		results = filterByThreshold(results, p.minScore)
	}
	if results == nil {
		results = []domain.ScoredConversation{}
	}
	return results, nil
}

// filterByThreshold removes results below the minimum score threshold.
func filterByThreshold(results []domain.ScoredConversation, min float64) []domain.ScoredConversation {
	filtered := make([]domain.ScoredConversation, 0, len(results))
	for _, r := range results {
		if r.Score >= min {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
