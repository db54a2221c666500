package usecase

import (
	"context"
	"fmt"

	"dialogue/internal/domain"
	"dialogue/internal/port"
)

// FeedbackUseCase applies human ratings to stored conversations.
type FeedbackUseCase struct {
	store port.ConversationStore
	cache port.SearchCache
}

func NewFeedbackUseCase(store port.ConversationStore, cache port.SearchCache) *FeedbackUseCase {
	return &FeedbackUseCase{store: store, cache: cache}
}

// Update overwrites the supplied fields and returns the updated conversation.
func (u *FeedbackUseCase) Update(ctx context.Context, id uint64, update domain.FeedbackUpdate) (domain.Conversation, error) {
	if update.Empty() {
		return domain.Conversation{}, fmt.Errorf("%w: no feedback fields supplied", domain.ErrInvalid)
	}

	if err := u.store.UpdateFeedback(ctx, id, update); err != nil {
		return domain.Conversation{}, err
	}
	if u.cache != nil {
		u.cache.Invalidate(ctx)
	}

	return u.store.Get(ctx, id)
}
