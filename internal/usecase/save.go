package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dialogue/internal/domain"
	"dialogue/internal/port"
)

// SaveUseCase scores, embeds and persists a generated conversation.
type SaveUseCase struct {
	store     port.ConversationStore
	embedder  port.Embedder
	evaluator *Evaluator
	cache     port.SearchCache
	now       func() time.Time
}

func NewSaveUseCase(
	store port.ConversationStore,
	embedder port.Embedder,
	evaluator *Evaluator,
	cache port.SearchCache,
) *SaveUseCase {
	return &SaveUseCase{
		store:     store,
		embedder:  embedder,
		evaluator: evaluator,
		cache:     cache,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for CreatedAt.
func (u *SaveUseCase) WithClock(now func() time.Time) *SaveUseCase {
	u.now = now
	return u
}

// Save runs the whole pipeline. Nothing is written unless every step
// before the store succeeds.
func (u *SaveUseCase) Save(ctx context.Context, req domain.SaveRequest) (domain.Conversation, error) {
	if strings.TrimSpace(req.Dialogue) == "" {
		return domain.Conversation{}, fmt.Errorf("%w: dialogue is empty", domain.ErrInvalid)
	}
	if err := req.Feedback.Validate(); err != nil {
		return domain.Conversation{}, err
	}
	if err := ensureSpace(ctx, u.store, u.embedder); err != nil {
		return domain.Conversation{}, err
	}

	eval, err := u.evaluator.Evaluate(ctx, req.CharacterA, req.CharacterB, req.Dialogue)
	if err != nil {
		return domain.Conversation{}, err
	}

	vecs, err := u.embedder.Embed(ctx, []string{req.Dialogue})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("failed to embed dialogue: %w", err)
	}
	if len(vecs) != 1 {
		return domain.Conversation{}, fmt.Errorf("%w: embedder returned %d vectors for 1 dialogue", domain.ErrEncoding, len(vecs))
	}

	uid := req.UID
	if uid == "" {
		uid = uuid.NewString()
	}

	conv := domain.Conversation{
		UID:            uid,
		LocationID:     req.LocationID,
		CharacterAID:   req.CharacterA.ID,
		CharacterAName: req.CharacterA.Name,
		CharacterBID:   req.CharacterB.ID,
		CharacterBName: req.CharacterB.Name,
		Dialogue:       req.Dialogue,
		Embedding:      vecs[0],
		Feedback:       req.Feedback,
		AutomatedScore: clampScore(eval.Combined),
		CreatedAt:      u.now().UTC(),
	}

	id, err := u.store.Save(ctx, conv)
	if err != nil {
		return domain.Conversation{}, err
	}
	conv.ID = id

	if u.cache != nil {
		u.cache.Invalidate(ctx)
	}
	return conv, nil
}

// clampScore guards the [-1,1] bound against float rounding in the cosine.
func clampScore(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
