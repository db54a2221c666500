// Package storetest holds the behaviour every port.ConversationStore must show.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"dialogue/internal/domain"
	"dialogue/internal/port"
)

// Factory returns a fresh, empty store. The test closes it.
type Factory func(t *testing.T) port.ConversationStore

// NewConversation builds a valid conversation with the given embedding.
func NewConversation(uid string, emb ...float32) domain.Conversation {
	return domain.Conversation{
		UID:            uid,
		LocationID:     "3",
		CharacterAID:   "1",
		CharacterAName: "Rick Sanchez",
		CharacterBID:   "2",
		CharacterBName: "Morty Smith",
		Dialogue:       "Rick: Morty, we're going to the Citadel.\nMorty: Aw geez, Rick.",
		Embedding:      emb,
		Feedback: domain.Feedback{
			AccuracyA:  domain.Float64(4),
			AccuracyB:  domain.Float64(3),
			Creativity: domain.Float64(2),
			Notes:      domain.String("solid banter"),
		},
		AutomatedScore: 0.42,
		CreatedAt:      time.Date(2026, 10, 16, 12, 0, 0, 123456789, time.UTC),
	}
}

// Run executes the store contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s port.ConversationStore)
	}{
		{"SaveAndGet", testSaveAndGet},
		{"EmbeddingRoundTrip", testEmbeddingRoundTrip},
		{"InsertionOrder", testInsertionOrder},
		{"ListRecent", testListRecent},
		{"RejectsIncomplete", testRejectsIncomplete},
		{"DimensionFixed", testDimensionFixed},
		{"DuplicateUID", testDuplicateUID},
		{"UpdateFeedback", testUpdateFeedback},
		{"UpdateFeedbackNotFound", testUpdateFeedbackNotFound},
		{"UpdateFeedbackInvalid", testUpdateFeedbackInvalid},
		{"ReplaceEmbeddings", testReplaceEmbeddings},
		{"ConcurrentSaves", testConcurrentSaves},
		{"ConcurrentFeedback", testConcurrentFeedback},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tc.fn(t, s)
		})
	}
}

func mustSave(t *testing.T, s port.ConversationStore, conv domain.Conversation) uint64 {
	t.Helper()
	id, err := s.Save(context.Background(), conv)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	return id
}

func mustCount(t *testing.T, s port.ConversationStore, want int) {
	t.Helper()
	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != want {
		t.Errorf("expected %d conversations, got %d", want, n)
	}
}

func testSaveAndGet(t *testing.T, s port.ConversationStore) {
	ctx := context.Background()
	conv := NewConversation("uid-1", 0.1, 0.2, 0.3)

	id := mustSave(t, s, conv)
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ID != id || got.UID != "uid-1" {
		t.Errorf("unexpected identity: id=%d uid=%s", got.ID, got.UID)
	}
	if got.Dialogue != conv.Dialogue || got.CharacterAName != "Rick Sanchez" || got.CharacterBID != "2" || got.LocationID != "3" {
		t.Errorf("fields not preserved: %+v", got)
	}
	if got.AutomatedScore != 0.42 {
		t.Errorf("expected automated score 0.42, got %f", got.AutomatedScore)
	}
	if !got.CreatedAt.Equal(conv.CreatedAt) {
		t.Errorf("expected created_at %s, got %s", conv.CreatedAt, got.CreatedAt)
	}
	if got.Feedback.Notes == nil || *got.Feedback.Notes != "solid banter" {
		t.Errorf("notes not preserved: %+v", got.Feedback)
	}

	if _, err := s.Get(ctx, id+100); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing id, got %v", err)
	}

	info, err := s.Info(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.Dimension != 3 {
		t.Errorf("expected store dimension 3, got %d", info.Dimension)
	}
}

func testEmbeddingRoundTrip(t *testing.T, s port.ConversationStore) {
	emb := []float32{
		0.123456789, -0.987654321, 1e-7, -3.4028235e38, 0,
		float32(math.Pi), float32(-math.E), 0.1, 1.0 / 3.0, 1e-30,
	}
	id := mustSave(t, s, NewConversation("", emb...))

	all, err := s.ListAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ID != id {
		t.Fatalf("expected the saved conversation back, got %d", len(all))
	}
	got := all[0].Embedding
	if len(got) != len(emb) {
		t.Fatalf("expected %d components, got %d", len(emb), len(got))
	}
	for i := range emb {
		if math.Abs(float64(got[i])-float64(emb[i])) > 1e-6 {
			t.Errorf("component %d: expected %g, got %g", i, emb[i], got[i])
		}
	}
}

func testInsertionOrder(t *testing.T, s port.ConversationStore) {
	var ids []uint64
	for i := 0; i < 5; i++ {
		ids = append(ids, mustSave(t, s, NewConversation(fmt.Sprintf("u%d", i), float32(i+1), 1)))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("ids not increasing: %v", ids)
		}
	}

	all, err := s.ListAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 conversations, got %d", len(all))
	}
	for i, c := range all {
		if c.ID != ids[i] {
			t.Errorf("position %d: expected id %d, got %d", i, ids[i], c.ID)
		}
	}
}

func testListRecent(t *testing.T, s port.ConversationStore) {
	for i := 0; i < 4; i++ {
		mustSave(t, s, NewConversation(fmt.Sprintf("r%d", i), float32(i), 1))
	}

	recent, err := s.ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent conversations, got %d", len(recent))
	}
	if recent[0].UID != "r3" || recent[1].UID != "r2" {
		t.Errorf("expected newest first, got %s, %s", recent[0].UID, recent[1].UID)
	}

	all, _ := s.ListRecent(context.Background(), 0)
	if len(all) != 4 {
		t.Errorf("expected no limit with 0, got %d", len(all))
	}
}

func testRejectsIncomplete(t *testing.T, s port.ConversationStore) {
	ctx := context.Background()

	noEmbedding := NewConversation("a")
	if _, err := s.Save(ctx, noEmbedding); !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("expected ErrInvalid without embedding, got %v", err)
	}

	badScore := NewConversation("b", 1, 2)
	badScore.AutomatedScore = 1.5
	if _, err := s.Save(ctx, badScore); !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("expected ErrInvalid for score out of range, got %v", err)
	}

	badRating := NewConversation("c", 1, 2)
	badRating.Feedback.Creativity = domain.Float64(6)
	if _, err := s.Save(ctx, badRating); !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("expected ErrInvalid for rating out of range, got %v", err)
	}

	mustCount(t, s, 0)
}

func testDimensionFixed(t *testing.T, s port.ConversationStore) {
	mustSave(t, s, NewConversation("a", 1, 2, 3))

	_, err := s.Save(context.Background(), NewConversation("b", 1, 2))
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	mustCount(t, s, 1)
}

func testDuplicateUID(t *testing.T, s port.ConversationStore) {
	mustSave(t, s, NewConversation("same", 1, 2))

	_, err := s.Save(context.Background(), NewConversation("same", 3, 4))
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	mustCount(t, s, 1)

	// empty UIDs never collide
	mustSave(t, s, NewConversation("", 1, 2))
	mustSave(t, s, NewConversation("", 1, 2))
	mustCount(t, s, 3)
}

func testUpdateFeedback(t *testing.T, s port.ConversationStore) {
	ctx := context.Background()
	id := mustSave(t, s, NewConversation("fb", 1, 2))

	err := s.UpdateFeedback(ctx, id, domain.FeedbackUpdate{Creativity: domain.Float64(4)})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	fb := got.Feedback
	if fb.Creativity == nil || *fb.Creativity != 4 {
		t.Errorf("expected creativity 4, got %v", fb.Creativity)
	}
	if fb.AccuracyA == nil || *fb.AccuracyA != 4 || fb.AccuracyB == nil || *fb.AccuracyB != 3 {
		t.Errorf("accuracy fields changed: %+v", fb)
	}
	if fb.Notes == nil || *fb.Notes != "solid banter" {
		t.Errorf("notes changed: %v", fb.Notes)
	}

	// last write wins
	if err := s.UpdateFeedback(ctx, id, domain.FeedbackUpdate{Notes: domain.String("second")}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx, id)
	if *got.Feedback.Notes != "second" || *got.Feedback.Creativity != 4 {
		t.Errorf("unexpected feedback after second update: %+v", got.Feedback)
	}
}

func testUpdateFeedbackNotFound(t *testing.T, s port.ConversationStore) {
	ctx := context.Background()
	mustSave(t, s, NewConversation("x", 1, 2))

	err := s.UpdateFeedback(ctx, 999, domain.FeedbackUpdate{Creativity: domain.Float64(4)})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	mustCount(t, s, 1)
	if _, err := s.Get(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("update must not create a record, got %v", err)
	}
}

func testUpdateFeedbackInvalid(t *testing.T, s port.ConversationStore) {
	ctx := context.Background()
	id := mustSave(t, s, NewConversation("x", 1, 2))

	err := s.UpdateFeedback(ctx, id, domain.FeedbackUpdate{AccuracyA: domain.Float64(-1)})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
	got, _ := s.Get(ctx, id)
	if *got.Feedback.AccuracyA != 4 {
		t.Errorf("rejected update must not be applied, got %v", *got.Feedback.AccuracyA)
	}
}

func testReplaceEmbeddings(t *testing.T, s port.ConversationStore) {
	r, ok := s.(port.Reembedder)
	if !ok {
		t.Skip("store does not support re-embedding")
	}
	ctx := context.Background()
	a := mustSave(t, s, NewConversation("a", 1, 2))
	b := mustSave(t, s, NewConversation("b", 3, 4))

	info := domain.StoreInfo{SchemaVersion: 1, Model: "other", Dimension: 3}
	if err := r.ReplaceEmbeddings(ctx, info, map[uint64][]float32{a: {1, 0, 0}, 999: {0, 0, 1}}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := r.ReplaceEmbeddings(ctx, info, map[uint64][]float32{a: {1, 0, 0}, b: {0, 1}}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if err := r.ReplaceEmbeddings(ctx, info, map[uint64][]float32{a: {1, 0, 0}, b: {0, 1, 0}}); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	got, err := s.Info(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != "other" || got.Dimension != 3 {
		t.Errorf("store info not updated: %+v", got)
	}
	all, _ := s.ListAll(ctx)
	if len(all) != 2 || len(all[1].Embedding) != 3 || all[1].Embedding[1] != 1 {
		t.Errorf("embeddings not replaced: %+v", all)
	}
}

func testConcurrentSaves(t *testing.T, s port.ConversationStore) {
	const n = 20
	var wg sync.WaitGroup
	ids := make(chan uint64, n)
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.Save(context.Background(), NewConversation(fmt.Sprintf("c%d", i), float32(i), 1))
			if err != nil {
				errs <- err
				return
			}
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		t.Errorf("concurrent save failed: %v", err)
	}
	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %d", id)
		}
		seen[id] = true
	}
	mustCount(t, s, n)
}

func testConcurrentFeedback(t *testing.T, s port.ConversationStore) {
	ctx := context.Background()
	id := mustSave(t, s, NewConversation("cf", 1, 2))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.UpdateFeedback(ctx, id, domain.FeedbackUpdate{Creativity: domain.Float64(float64(i % 6))}); err != nil {
				t.Errorf("concurrent update failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Feedback.Creativity == nil || *got.Feedback.Creativity < 0 || *got.Feedback.Creativity > 5 {
		t.Errorf("unexpected creativity after concurrent updates: %v", got.Feedback.Creativity)
	}
	mustCount(t, s, 1)
}
