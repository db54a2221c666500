package usecase

import (
	"context"
	"fmt"

	"dialogue/internal/adapter/store"
	"dialogue/internal/domain"
	"dialogue/internal/port"
)

// ProgressFunc reports how many of total items are done.
type ProgressFunc func(done, total int)

// ReembedUseCase re-encodes every stored dialogue with the configured
// embedder, for when the model or dimension changed.
type ReembedUseCase struct {
	store     port.ConversationStore
	embedder  port.Embedder
	cache     port.SearchCache
	batchSize int
}

func NewReembedUseCase(st port.ConversationStore, embedder port.Embedder, cache port.SearchCache, batchSize int) *ReembedUseCase {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &ReembedUseCase{store: st, embedder: embedder, cache: cache, batchSize: batchSize}
}

// ReembedResult contains the results of a re-embedding run.
type ReembedResult struct {
	Conversations int
	From          domain.StoreInfo
	To            domain.StoreInfo
	Reason        string
	UpToDate      bool
}

// Check reports whether the store needs re-embedding.
func (u *ReembedUseCase) Check(ctx context.Context) (*store.MigrationResult, error) {
	info, err := u.store.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store info: %w", err)
	}
	return store.CheckMigration(info, wantedSpace(u.embedder)), nil
}

// Reembed rewrites all embeddings when the store's space differs from the
// embedder's, or always when force is set. New vectors are computed in
// batches and written in a single transaction at the end.
func (u *ReembedUseCase) Reembed(ctx context.Context, force bool, progress ProgressFunc) (*ReembedResult, error) {
	r, ok := u.store.(port.Reembedder)
	if !ok {
		return nil, fmt.Errorf("store backend does not support re-embedding")
	}

	check, err := u.Check(ctx)
	if err != nil {
		return nil, err
	}
	result := &ReembedResult{From: check.Current, To: check.Wanted, Reason: check.Reason}

	if !check.NeedsReembed && !force {
		if check.NeedsInit {
			if err := r.SetInfo(ctx, check.Wanted); err != nil {
				return nil, fmt.Errorf("failed to record embedding model: %w", err)
			}
		}
		result.UpToDate = true
		return result, nil
	}

	convs, err := u.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	embeddings := make(map[uint64][]float32, len(convs))
	for i := 0; i < len(convs); i += u.batchSize {
		end := i + u.batchSize
		if end > len(convs) {
			end = len(convs)
		}
		batch := convs[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Dialogue
		}

		vecs, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding batch failed: %w", err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("%w: embedder returned %d vectors for %d dialogues", domain.ErrEncoding, len(vecs), len(batch))
		}
		for j, c := range batch {
			embeddings[c.ID] = vecs[j]
		}

		if progress != nil {
			progress(end, len(convs))
		}
	}

	if err := r.ReplaceEmbeddings(ctx, check.Wanted, embeddings); err != nil {
		return nil, err
	}
	if u.cache != nil {
		u.cache.Invalidate(ctx)
	}

	result.Conversations = len(convs)
	return result, nil
}
