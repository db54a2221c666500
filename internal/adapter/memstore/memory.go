package memstore

import (
	"context"
	"fmt"
	"sync"

	"dialogue/internal/domain"
	"dialogue/internal/port"
)

var (
	_ port.ConversationStore = (*MemoryStore)(nil)
	_ port.Reembedder        = (*MemoryStore)(nil)
)

// MemoryStore is a process-local ConversationStore for tests and for
// running the server without a data directory.
type MemoryStore struct {
	mu     sync.RWMutex
	convs  []domain.Conversation // insertion order; index = id-1
	uids   map[string]uint64
	info   domain.StoreInfo
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		uids: make(map[string]uint64),
	}
}

// clone copies the mutable parts so callers cannot alter stored state.
func clone(c domain.Conversation) domain.Conversation {
	emb := make([]float32, len(c.Embedding))
	copy(emb, c.Embedding)
	c.Embedding = emb

	fb := c.Feedback
	if fb.AccuracyA != nil {
		fb.AccuracyA = domain.Float64(*fb.AccuracyA)
	}
	if fb.AccuracyB != nil {
		fb.AccuracyB = domain.Float64(*fb.AccuracyB)
	}
	if fb.Creativity != nil {
		fb.Creativity = domain.Float64(*fb.Creativity)
	}
	if fb.Notes != nil {
		fb.Notes = domain.String(*fb.Notes)
	}
	c.Feedback = fb
	return c
}

func (s *MemoryStore) checkOpen() error {
	if s.closed {
		return fmt.Errorf("%w: store is closed", domain.ErrPersistence)
	}
	return nil
}

func (s *MemoryStore) Save(ctx context.Context, conv domain.Conversation) (uint64, error) {
	if err := conv.Validate(0); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	if s.info.Dimension == 0 {
		s.info.Dimension = len(conv.Embedding)
	} else if len(conv.Embedding) != s.info.Dimension {
		return 0, fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.info.Dimension, len(conv.Embedding))
	}
	if conv.UID != "" {
		if _, exists := s.uids[conv.UID]; exists {
			return 0, fmt.Errorf("%w: uid %s", domain.ErrDuplicate, conv.UID)
		}
	}

	conv = clone(conv)
	conv.ID = uint64(len(s.convs) + 1)
	s.convs = append(s.convs, conv)
	if conv.UID != "" {
		s.uids[conv.UID] = conv.ID
	}
	return conv.ID, nil
}

func (s *MemoryStore) UpdateFeedback(ctx context.Context, id uint64, update domain.FeedbackUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if id == 0 || id > uint64(len(s.convs)) {
		return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}

	fb := update.Apply(s.convs[id-1].Feedback)
	if err := fb.Validate(); err != nil {
		return err
	}
	s.convs[id-1].Feedback = clone(domain.Conversation{Feedback: fb}).Feedback
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uint64) (domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id == 0 || id > uint64(len(s.convs)) {
		return domain.Conversation{}, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	return clone(s.convs[id-1]), nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	convs := make([]domain.Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		convs = append(convs, clone(c))
	}
	return convs, nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	convs := make([]domain.Conversation, 0)
	for i := len(s.convs) - 1; i >= 0; i-- {
		if limit > 0 && len(convs) >= limit {
			break
		}
		convs = append(convs, clone(s.convs[i]))
	}
	return convs, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs), nil
}

func (s *MemoryStore) Info(ctx context.Context) (domain.StoreInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info, nil
}

func (s *MemoryStore) SetInfo(ctx context.Context, info domain.StoreInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
	return nil
}

func (s *MemoryStore) ReplaceEmbeddings(ctx context.Context, info domain.StoreInfo, embeddings map[uint64][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// validate everything first so a failure leaves the store untouched
	for id, emb := range embeddings {
		if id == 0 || id > uint64(len(s.convs)) {
			return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
		}
		if len(emb) != info.Dimension {
			return fmt.Errorf("%w: conversation %d: expected %d, got %d", domain.ErrDimensionMismatch, id, info.Dimension, len(emb))
		}
	}
	for id, emb := range embeddings {
		cp := make([]float32, len(emb))
		copy(cp, emb)
		s.convs[id-1].Embedding = cp
	}
	s.info = info
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
