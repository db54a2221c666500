package retriever

import (
	"dialogue/internal/domain"
)

// MMRReranker implements Maximal Marginal Relevance for result diversification.
// Redundancy is measured as cosine similarity between conversation embeddings.
type MMRReranker struct {
	lambda         float64
	dedupThreshold float64
}

// NewMMRReranker creates a new MMR reranker. Candidates whose similarity to
// an already selected conversation exceeds dedupThreshold are dropped.
func NewMMRReranker(lambda, dedupThreshold float64) *MMRReranker {
	return &MMRReranker{
		lambda:         lambda,
		dedupThreshold: dedupThreshold,
	}
}

// Rerank applies MMR to diversify the results.
// MMR(c) = λ * relevance(c) - (1-λ) * max_similarity(c, selected)
func (r *MMRReranker) Rerank(candidates []domain.ScoredConversation, k int) []domain.ScoredConversation {
	if len(candidates) == 0 {
		return nil
	}

	if k > len(candidates) {
		k = len(candidates)
	}

	// Cosine scores may be negative; shift into [0,1] before normalising.
	minScore, maxScore := candidates[0].Score, candidates[0].Score
	for _, c := range candidates {
		if c.Score > maxScore {
			maxScore = c.Score
		}
		if c.Score < minScore {
			minScore = c.Score
		}
	}
	span := maxScore - minScore
	if span == 0 {
		span = 1
	}

	selected := make([]domain.ScoredConversation, 0, k)
	remaining := make([]domain.ScoredConversation, len(candidates))
	copy(remaining, candidates)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := -1
		bestMMR := -1e9

		for i, candidate := range remaining {
			relevance := (candidate.Score - minScore) / span

			maxSim := 0.0
			for _, sel := range selected {
				sim := CosineSimilarity(candidate.Conversation.Embedding, sel.Conversation.Embedding)
				if sim > maxSim {
					maxSim = sim
				}
			}

			if maxSim > r.dedupThreshold {
				continue
			}

			mmr := r.lambda*relevance - (1-r.lambda)*maxSim
			// strict > keeps the earlier candidate on ties
			if mmr > bestMMR {
				bestMMR = mmr
				bestIdx = i
			}
		}

		if bestIdx == -1 {
			break
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}
