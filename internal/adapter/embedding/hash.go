package embedding

import (
	"context"
	"math"

	"github.com/cespare/xxhash/v2"

	"dialogue/internal/adapter/analyzer"
)

// DefaultHashDimension matches all-MiniLM-L6-v2, the model the hosted
// backends are usually configured with, so switching providers keeps N.
const DefaultHashDimension = 384

const (
	wordWeight    = 1.0
	bigramWeight  = 0.5
	trigramWeight = 0.25
)

// HashEmbedder is a local, deterministic encoder based on the hashing trick.
// Word unigrams, word bigrams and character trigrams are hashed into
// dimension buckets (xxhash) with a sign bit, then the vector is L2-normalised.
// Texts without any token map to the zero vector.
type HashEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(true),
	}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = e.encode(text)
	}
	return embeddings, nil
}

func (e *HashEmbedder) encode(text string) []float32 {
	acc := make([]float64, e.dimension)
	tokens := e.tokenizer.Tokenize(text)

	for i, tok := range tokens {
		e.add(acc, "w:"+tok, wordWeight)
		if i > 0 {
			e.add(acc, "b:"+tokens[i-1]+" "+tok, bigramWeight)
		}
		for _, gram := range analyzer.CharNGrams(tok, 3) {
			e.add(acc, "c:"+gram, trigramWeight)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}

	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (e *HashEmbedder) add(acc []float64, feature string, weight float64) {
	sum := xxhash.Sum64String(feature)
	bucket := int(sum % uint64(e.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	acc[bucket] += weight
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "hash-ngram"
}

// MockEmbedder maps each rune to one component. Only useful in tests.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = make([]float32, e.dimension)

		j := 0
		for _, r := range texts[i] {
			if j >= e.dimension {
				break
			}
			embeddings[i][j] = float32(r) / 1000.0
			j++
		}
	}
	return embeddings, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
