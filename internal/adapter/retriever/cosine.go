package retriever

import (
	"math"
	"sort"
)

// Candidate is a stored vector offered to the ranker.
type Candidate struct {
	ID     uint64
	Vector []float32
}

// Ranked is a candidate with its similarity to the query.
type Ranked struct {
	ID    uint64
	Score float64
	Index int // position in the input slice
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|).
// Zero-magnitude vectors and vectors of different length score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push identical vectors slightly past 1
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// CosineRanker orders candidates by cosine similarity to a query.
type CosineRanker struct{}

func NewCosineRanker() *CosineRanker {
	return &CosineRanker{}
}

// Rank scores every candidate and returns them by descending similarity.
// Equal scores keep their input order.
func (r *CosineRanker) Rank(query []float32, candidates []Candidate) []Ranked {
	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		ranked[i] = Ranked{
			ID:    c.ID,
			Score: CosineSimilarity(query, c.Vector),
			Index: i,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}
