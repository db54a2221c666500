package usecase

import (
	"context"
	"testing"
	"time"

	"dialogue/internal/adapter/memstore"
	"dialogue/internal/domain"
)

func TestStats(t *testing.T) {
	ctx := context.Background()
	st := memstore.NewMemoryStore()
	uc := NewStatsUseCase(st)

	empty, err := uc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Conversations != 0 || empty.AvgScore != 0 {
		t.Errorf("unexpected stats for empty store: %+v", empty)
	}

	ids := seed(t, st, []float32{1, 0}, []float32{0, 1}, []float32{1, 1})
	st.UpdateFeedback(ctx, ids[1], domain.FeedbackUpdate{Creativity: domain.Float64(3)})
	st.UpdateFeedback(ctx, ids[2], domain.FeedbackUpdate{Notes: domain.String("notes alone are not a rating")})

	stats, err := uc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Conversations != 3 || stats.Dimension != 2 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.Rated != 1 {
		t.Errorf("expected 1 rated conversation, got %d", stats.Rated)
	}
	if !stats.Oldest.Equal(fixedNow) || !stats.Newest.Equal(fixedNow.Add(2*time.Minute)) {
		t.Errorf("unexpected range: %s .. %s", stats.Oldest, stats.Newest)
	}
}
