package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"dialogue/internal/adapter/storetest"
	"dialogue/internal/domain"
	"dialogue/internal/port"
)

func newTestSQLiteStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.sqlite"), opts...)
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) port.ConversationStore {
		return newTestSQLiteStore(t)
	})
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Save(ctx, storetest.NewConversation("m", 1, 2)); err != nil {
		t.Fatal(err)
	}
	n, err := s.Count(ctx)
	if err != nil || n != 1 {
		t.Errorf("expected 1 conversation, got %d (%v)", n, err)
	}
}

func TestSQLiteStore_SkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	var skipped []uint64
	s := newTestSQLiteStore(t, WithCorruptHandler(func(id uint64, err error) {
		skipped = append(skipped, id)
	}))
	defer s.Close()

	first, _ := s.Save(ctx, storetest.NewConversation("a", 1, 2, 3))
	second, _ := s.Save(ctx, storetest.NewConversation("b", 4, 5, 6))
	third, _ := s.Save(ctx, storetest.NewConversation("c", 7, 8, 9))

	if _, err := s.conn.Exec(`UPDATE conversations SET embedding = 'garbage' WHERE id = ?`, int64(second)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.conn.Exec(`UPDATE conversations SET embedding = '[1,2]' WHERE id = ?`, int64(third)); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 || all[0].ID != first {
		t.Errorf("expected only the intact conversation, got %d", len(all))
	}
	if len(skipped) != 2 || skipped[0] != second || skipped[1] != third {
		t.Errorf("expected skipped ids [%d %d], got %v", second, third, skipped)
	}

	if _, err := s.Get(ctx, third); !errors.Is(err, domain.ErrCorruptRecord) {
		t.Errorf("expected ErrCorruptRecord from Get, got %v", err)
	}
}

func TestSQLiteStore_NullFeedback(t *testing.T) {
	s := newTestSQLiteStore(t)
	defer s.Close()
	ctx := context.Background()

	conv := storetest.NewConversation("n", 1, 2)
	conv.Feedback = domain.Feedback{}
	id, err := s.Save(ctx, conv)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	fb := got.Feedback
	if fb.AccuracyA != nil || fb.AccuracyB != nil || fb.Creativity != nil || fb.Notes != nil {
		t.Errorf("expected absent ratings to stay absent, got %+v", fb)
	}
}
