package usecase

import (
	"context"
	"fmt"

	"dialogue/internal/adapter/store"
	"dialogue/internal/domain"
	"dialogue/internal/port"
)

// ensureSpace makes sure the store's recorded embedding space matches the
// embedder before anything is written. An empty store adopts the embedder's
// space; a mismatched one is refused until it is re-embedded.
func ensureSpace(ctx context.Context, st port.ConversationStore, embedder port.Embedder) error {
	info, err := st.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read store info: %w", err)
	}

	result := store.CheckMigration(info, wantedSpace(embedder))
	if result.NeedsReembed {
		return fmt.Errorf("%w: %s; run 'dialogue reembed' first", domain.ErrDimensionMismatch, result.Reason)
	}
	if result.NeedsInit {
		r, ok := st.(port.Reembedder)
		if !ok {
			return nil
		}
		if err := r.SetInfo(ctx, result.Wanted); err != nil {
			return fmt.Errorf("failed to record embedding model: %w", err)
		}
	}
	return nil
}

func wantedSpace(embedder port.Embedder) domain.StoreInfo {
	return domain.StoreInfo{
		SchemaVersion: store.CurrentSchemaVersion,
		Model:         embedder.ModelName(),
		Dimension:     embedder.Dimension(),
	}
}
