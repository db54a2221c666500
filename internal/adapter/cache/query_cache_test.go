package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"dialogue/internal/domain"
	"dialogue/internal/port"
)

func results(ids ...uint64) []domain.ScoredConversation {
	out := make([]domain.ScoredConversation, len(ids))
	for i, id := range ids {
		out[i] = domain.ScoredConversation{
			Conversation: domain.Conversation{ID: id},
			Score:        1 / float64(i+1),
		}
	}
	return out
}

func TestQueryCache_GetPut(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(10, time.Minute)

	if _, _, hit := c.Get(ctx, "portal gun", 5); hit {
		t.Fatal("expected miss on empty cache")
	}

	c.Put(ctx, 0, "portal gun", 5, results(1, 2))

	got, _, hit := c.Get(ctx, "portal gun", 5)
	if !hit {
		t.Fatal("expected hit")
	}
	if len(got) != 2 || got[0].Conversation.ID != 1 {
		t.Errorf("unexpected cached results: %+v", got)
	}

	if _, _, hit := c.Get(ctx, "portal gun", 3); hit {
		t.Error("different topK must be a different entry")
	}
}

func TestQueryCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(10, time.Minute)

	c.Put(ctx, 0, "q", 5, results(1))
	c.Invalidate(ctx)

	if _, _, hit := c.Get(ctx, "q", 5); hit {
		t.Error("expected miss after invalidate")
	}
	if c.Size() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Size())
	}
}

func TestQueryCache_TTL(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(10, 10*time.Millisecond)

	c.Put(ctx, 0, "q", 5, results(1))
	time.Sleep(20 * time.Millisecond)

	if _, _, hit := c.Get(ctx, "q", 5); hit {
		t.Error("expected expired entry to miss")
	}
}

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(2, time.Minute)

	c.Put(ctx, 0, "a", 5, results(1))
	c.Put(ctx, 0, "b", 5, results(2))
	c.Get(ctx, "a", 5) // a becomes most recent
	c.Put(ctx, 0, "c", 5, results(3))

	if _, _, hit := c.Get(ctx, "b", 5); hit {
		t.Error("expected b to be evicted")
	}
	if _, _, hit := c.Get(ctx, "a", 5); !hit {
		t.Error("expected a to survive")
	}
	if _, _, hit := c.Get(ctx, "c", 5); !hit {
		t.Error("expected c to be present")
	}
}

type countingSearcher struct {
	calls int
	err   error
}

func (s *countingSearcher) Search(ctx context.Context, query string, topK int) ([]domain.ScoredConversation, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return results(7), nil
}

func TestCachedSearcher(t *testing.T) {
	ctx := context.Background()
	inner := &countingSearcher{}
	c := NewQueryCache(10, time.Minute)
	s := NewCachedSearcher(inner, c)

	for i := 0; i < 3; i++ {
		got, err := s.Search(ctx, "squanch", 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Conversation.ID != 7 {
			t.Errorf("unexpected results: %+v", got)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 underlying search, got %d", inner.calls)
	}

	c.Invalidate(ctx)
	s.Search(ctx, "squanch", 5)
	if inner.calls != 2 {
		t.Errorf("expected a fresh search after invalidate, got %d calls", inner.calls)
	}
}

func TestCachedSearcher_DoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	inner := &countingSearcher{err: boom}
	s := NewCachedSearcher(inner, NewQueryCache(10, time.Minute))

	for i := 0; i < 2; i++ {
		if _, err := s.Search(ctx, "q", 5); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("errors must not be cached, got %d calls", inner.calls)
	}
}

// invalidatingSearcher bumps the cache generation while its first search is
// in flight, the way a concurrent save does.
type invalidatingSearcher struct {
	cache port.SearchCache
	calls int
}

func (s *invalidatingSearcher) Search(ctx context.Context, query string, topK int) ([]domain.ScoredConversation, error) {
	s.calls++
	if s.calls == 1 {
		s.cache.Invalidate(ctx)
		return results(1), nil
	}
	return results(1, 2), nil
}

func TestCachedSearcher_InvalidateDuringSearch(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(10, time.Minute)
	inner := &invalidatingSearcher{cache: c}
	s := NewCachedSearcher(inner, c)

	first, err := s.Search(ctx, "q", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("expected the in-flight result, got %+v", first)
	}

	second, err := s.Search(ctx, "q", 5)
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("result computed before invalidate must not be cached, got %d underlying searches", inner.calls)
	}
	if len(second) != 2 {
		t.Errorf("expected fresh results, got %+v", second)
	}
}

func TestQueryCache_PutWithStaleGeneration(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(10, time.Minute)

	_, gen, _ := c.Get(ctx, "q", 5)
	c.Invalidate(ctx)
	c.Put(ctx, gen, "q", 5, results(1))

	if _, _, hit := c.Get(ctx, "q", 5); hit {
		t.Error("expected put from an invalidated generation to be dropped")
	}
	if c.Size() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Size())
	}
}

func TestQueryCache_EntriesAreDeepCopies(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(10, time.Minute)

	in := []domain.ScoredConversation{{
		Conversation: domain.Conversation{
			ID:        1,
			Embedding: []float32{1, 0},
			Feedback:  domain.Feedback{Creativity: domain.Float64(3), Notes: domain.String("ok")},
		},
		Score: 0.9,
	}}
	c.Put(ctx, 0, "q", 5, in)

	in[0].Conversation.Embedding[0] = 42
	*in[0].Conversation.Feedback.Creativity = 5

	got, _, _ := c.Get(ctx, "q", 5)
	got[0].Conversation.Embedding[1] = 42
	*got[0].Conversation.Feedback.Notes = "changed"

	again, _, hit := c.Get(ctx, "q", 5)
	if !hit {
		t.Fatal("expected hit")
	}
	conv := again[0].Conversation
	if conv.Embedding[0] != 1 || conv.Embedding[1] != 0 {
		t.Errorf("cached embedding was modified: %v", conv.Embedding)
	}
	if *conv.Feedback.Creativity != 3 || *conv.Feedback.Notes != "ok" {
		t.Errorf("cached feedback was modified: %+v", conv.Feedback)
	}
}
