package usecase

import (
	"context"
	"fmt"

	"dialogue/internal/domain"
	"dialogue/internal/port"
)

// StatsUseCase summarises the store contents.
type StatsUseCase struct {
	store port.ConversationStore
}

func NewStatsUseCase(store port.ConversationStore) *StatsUseCase {
	return &StatsUseCase{store: store}
}

func (u *StatsUseCase) Stats(ctx context.Context) (domain.Stats, error) {
	info, err := u.store.Info(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("failed to read store info: %w", err)
	}
	convs, err := u.store.ListAll(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("failed to list conversations: %w", err)
	}

	stats := domain.Stats{
		Conversations: len(convs),
		Model:         info.Model,
		Dimension:     info.Dimension,
	}
	if len(convs) == 0 {
		return stats, nil
	}

	var total float64
	stats.Oldest = convs[0].CreatedAt
	stats.Newest = convs[0].CreatedAt
	for _, c := range convs {
		total += c.AutomatedScore
		if c.Feedback.Rated() {
			stats.Rated++
		}
		if c.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = c.CreatedAt
		}
		if c.CreatedAt.After(stats.Newest) {
			stats.Newest = c.CreatedAt
		}
	}
	stats.AvgScore = total / float64(len(convs))
	return stats, nil
}
