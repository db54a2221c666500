package usecase

import (
	"context"
	"fmt"
	"strings"

	"dialogue/internal/adapter/retriever"
	"dialogue/internal/domain"
	"dialogue/internal/port"
)

// CombineRule folds the two per-character similarities into one score.
type CombineRule string

const (
	CombineMean CombineRule = "mean"
	CombineMin  CombineRule = "min"
	CombineMax  CombineRule = "max"
)

// ParseCombineRule accepts the scoring.combine config value. Empty means mean.
func ParseCombineRule(s string) (CombineRule, error) {
	switch CombineRule(strings.ToLower(strings.TrimSpace(s))) {
	case "", CombineMean:
		return CombineMean, nil
	case CombineMin:
		return CombineMin, nil
	case CombineMax:
		return CombineMax, nil
	}
	return "", fmt.Errorf("unknown combine rule %q (want mean, min or max)", s)
}

func (r CombineRule) Combine(a, b float64) float64 {
	switch r {
	case CombineMin:
		if a < b {
			return a
		}
		return b
	case CombineMax:
		if a > b {
			return a
		}
		return b
	default:
		return (a + b) / 2
	}
}

// Evaluator scores generated dialogue against reference text by cosine
// similarity of their embeddings.
type Evaluator struct {
	embedder port.Embedder
	rule     CombineRule
}

func NewEvaluator(embedder port.Embedder, rule CombineRule) *Evaluator {
	if rule == "" {
		rule = CombineMean
	}
	return &Evaluator{embedder: embedder, rule: rule}
}

// Rule is the combination applied by Evaluate.
func (e *Evaluator) Rule() CombineRule {
	return e.rule
}

// Score returns the cosine similarity of reference and generated, in [-1,1].
func (e *Evaluator) Score(ctx context.Context, reference, generated string) (float64, error) {
	vecs, err := e.embed(ctx, reference, generated)
	if err != nil {
		return 0, err
	}
	return retriever.CosineSimilarity(vecs[0], vecs[1]), nil
}

// Evaluate compares the dialogue with an anchor built from each character's
// description and combines both similarities with the configured rule.
func (e *Evaluator) Evaluate(ctx context.Context, a, b domain.Character, dialogue string) (domain.Evaluation, error) {
	vecs, err := e.embed(ctx, CharacterAnchor(a), CharacterAnchor(b), dialogue)
	if err != nil {
		return domain.Evaluation{}, err
	}

	scoreA := retriever.CosineSimilarity(vecs[0], vecs[2])
	scoreB := retriever.CosineSimilarity(vecs[1], vecs[2])
	return domain.Evaluation{
		ScoreA:   scoreA,
		ScoreB:   scoreB,
		Combined: e.Rule().Combine(scoreA, scoreB),
		Rule:     string(e.Rule()),
	}, nil
}

func (e *Evaluator) embed(ctx context.Context, texts ...string) ([][]float32, error) {
	vecs, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed evaluation text: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts", domain.ErrEncoding, len(vecs), len(texts))
	}
	return vecs, nil
}

// CharacterAnchor is the reference text a character's lines are scored
// against: name, species and description, empty parts left out.
func CharacterAnchor(c domain.Character) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{c.Name, c.Species, c.Description} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
