package port

import (
	"context"

	"dialogue/internal/domain"
)

// ConversationStore persists conversations with their embeddings.
type ConversationStore interface {
	// Save persists a fully populated conversation and returns its new ID.
	// Nothing is written if any part of the save fails.
	Save(ctx context.Context, conv domain.Conversation) (uint64, error)

	// UpdateFeedback overwrites the feedback fields present in update.
	// Returns domain.ErrNotFound when id does not exist.
	UpdateFeedback(ctx context.Context, id uint64, update domain.FeedbackUpdate) error

	Get(ctx context.Context, id uint64) (domain.Conversation, error)

	// ListAll returns every decodable conversation in insertion order.
	ListAll(ctx context.Context) ([]domain.Conversation, error)

	// ListRecent returns up to limit conversations, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.Conversation, error)

	Count(ctx context.Context) (int, error)

	// Info returns the embedding space recorded in the store.
	Info(ctx context.Context) (domain.StoreInfo, error)

	Close() error
}

// Reembedder is implemented by stores whose embedding space can be rewritten.
type Reembedder interface {
	// SetInfo records the embedding space without touching conversations.
	SetInfo(ctx context.Context, info domain.StoreInfo) error

	// ReplaceEmbeddings swaps embeddings and records info in one unit.
	ReplaceEmbeddings(ctx context.Context, info domain.StoreInfo, embeddings map[uint64][]float32) error
}

// CorruptHandler is told about rows skipped while reading.
type CorruptHandler func(id uint64, err error)
