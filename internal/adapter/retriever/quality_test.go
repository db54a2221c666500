package retriever

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dialogue/internal/adapter/embedding"
	"dialogue/internal/adapter/memstore"
	"dialogue/internal/domain"
)

var qualityCorpus = []string{
	"Rick: The portal gun is overheating in the garage again, Morty!",
	"Morty: I asked Jessica to the school dance and she said maybe.",
	"Summer: My phone battery died at the mall, this is a disaster.",
	"Jerry: They fired me from the advertising agency over a pun.",
	"Beth: I performed surgery on a horse at the veterinary hospital today.",
	"Rick: Pickle transformation complete. Nobody can stop pickle Rick.",
}

func newQualityRetriever(t testing.TB) *SemanticRetriever {
	t.Helper()
	ctx := context.Background()
	st := memstore.NewMemoryStore()
	emb := embedding.NewHashEmbedder(0)

	vecs, err := emb.Embed(ctx, qualityCorpus)
	if err != nil {
		t.Fatalf("embed corpus: %v", err)
	}
	created := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	for i, text := range qualityCorpus {
		_, err := st.Save(ctx, domain.Conversation{
			UID:       fmt.Sprintf("conv-%d", i+1),
			Dialogue:  text,
			Embedding: vecs[i],
			CreatedAt: created.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	return NewSemanticRetriever(st, emb, nil)
}

// ids 1..6 follow qualityCorpus order
func TestSemanticRetrievalQuality(t *testing.T) {
	r := newQualityRetriever(t)

	cases := []struct {
		query    string
		relevant uint64
	}{
		{"portal gun overheating garage", 1},
		{"school dance with Jessica", 2},
		{"phone battery died at the mall", 3},
		{"fired from the advertising agency", 4},
		{"horse surgery veterinary hospital", 5},
		{"pickle transformation", 6},
	}

	var mrr float64
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			results, err := r.Search(context.Background(), tc.query, 3)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			ids := make([]uint64, len(results))
			for i, res := range results {
				ids[i] = res.Conversation.ID
			}
			rr := ReciprocalRank(ids, tc.relevant)
			mrr += rr
			if rr != 1 {
				t.Errorf("relevant conversation %d ranked at %v, want first", tc.relevant, ids)
			}
		})
	}

	if mrr /= float64(len(cases)); mrr < 0.99 {
		t.Errorf("MRR = %.3f, want 1.0", mrr)
	}
}

func BenchmarkSemanticSearch(b *testing.B) {
	r := newQualityRetriever(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Search(ctx, "portal gun garage", 3); err != nil {
			b.Fatal(err)
		}
	}
}

func TestPrecisionAtK(t *testing.T) {
	cases := []struct {
		name      string
		retrieved []uint64
		relevant  []uint64
		wantP     float64
	}{
		{"perfect", []uint64{1, 2, 3}, []uint64{1, 2, 3}, 1.0},
		{"partial", []uint64{1, 2, 9}, []uint64{1, 2, 3}, 0.666},
		{"none", []uint64{7, 8, 9}, []uint64{1, 2, 3}, 0.0},
		{"empty_retrieved", []uint64{}, []uint64{1, 2}, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := PrecisionAtK(tc.retrieved, tc.relevant)
			if !floatEquals(p, tc.wantP, 0.01) {
				t.Errorf("precision = %.3f, want %.3f", p, tc.wantP)
			}
		})
	}
}

func TestReciprocalRank(t *testing.T) {
	cases := []struct {
		name      string
		retrieved []uint64
		relevant  uint64
		want      float64
	}{
		{"first", []uint64{1, 2, 3}, 1, 1.0},
		{"second", []uint64{2, 1, 3}, 1, 0.5},
		{"third", []uint64{2, 3, 1}, 1, 0.333},
		{"missing", []uint64{2, 3, 4}, 1, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := ReciprocalRank(tc.retrieved, tc.relevant)
			if !floatEquals(rr, tc.want, 0.01) {
				t.Errorf("reciprocal rank = %.3f, want %.3f", rr, tc.want)
			}
		})
	}
}

func PrecisionAtK(retrieved, relevant []uint64) float64 {
	if len(retrieved) == 0 {
		return 0
	}
	relevantSet := make(map[uint64]bool)
	for _, r := range relevant {
		relevantSet[r] = true
	}
	hits := 0
	for _, r := range retrieved {
		if relevantSet[r] {
			hits++
		}
	}
	return float64(hits) / float64(len(retrieved))
}

func ReciprocalRank(retrieved []uint64, relevant uint64) float64 {
	for i, r := range retrieved {
		if r == relevant {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}
