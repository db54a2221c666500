package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dialogue/internal/domain"
	"dialogue/internal/port"
)

// storedConversation is the persisted layout. The embedding is kept as a
// JSON array of float32 values, which round-trips exactly.
type storedConversation struct {
	UID            string          `json:"uid"`
	LocationID     string          `json:"location_id,omitempty"`
	CharacterAID   string          `json:"character_a_id"`
	CharacterAName string          `json:"character_a_name,omitempty"`
	CharacterBID   string          `json:"character_b_id"`
	CharacterBName string          `json:"character_b_name,omitempty"`
	Dialogue       string          `json:"dialogue"`
	Embedding      []float32       `json:"embedding"`
	Feedback       domain.Feedback `json:"feedback"`
	AutomatedScore float64         `json:"automated_score"`
	CreatedAt      int64           `json:"created_at"` // unix nanoseconds
}

func toStored(c domain.Conversation) storedConversation {
	return storedConversation{
		UID:            c.UID,
		LocationID:     c.LocationID,
		CharacterAID:   c.CharacterAID,
		CharacterAName: c.CharacterAName,
		CharacterBID:   c.CharacterBID,
		CharacterBName: c.CharacterBName,
		Dialogue:       c.Dialogue,
		Embedding:      c.Embedding,
		Feedback:       c.Feedback,
		AutomatedScore: c.AutomatedScore,
		CreatedAt:      c.CreatedAt.UnixNano(),
	}
}

func (s storedConversation) toDomain(id uint64) domain.Conversation {
	return domain.Conversation{
		ID:             id,
		UID:            s.UID,
		LocationID:     s.LocationID,
		CharacterAID:   s.CharacterAID,
		CharacterAName: s.CharacterAName,
		CharacterBID:   s.CharacterBID,
		CharacterBName: s.CharacterBName,
		Dialogue:       s.Dialogue,
		Embedding:      s.Embedding,
		Feedback:       s.Feedback,
		AutomatedScore: s.AutomatedScore,
		CreatedAt:      time.Unix(0, s.CreatedAt).UTC(),
	}
}

// decodeConversation parses a stored record and checks its embedding length
// against dimension (0 skips the check).
func decodeConversation(id uint64, data []byte, dimension int) (domain.Conversation, error) {
	var stored storedConversation
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.Conversation{}, fmt.Errorf("%w: conversation %d: %v", domain.ErrCorruptRecord, id, err)
	}
	if len(stored.Embedding) == 0 {
		return domain.Conversation{}, fmt.Errorf("%w: conversation %d has no embedding", domain.ErrCorruptRecord, id)
	}
	if dimension > 0 && len(stored.Embedding) != dimension {
		return domain.Conversation{}, fmt.Errorf("%w: conversation %d has %d-dim embedding, store is %d-dim",
			domain.ErrCorruptRecord, id, len(stored.Embedding), dimension)
	}
	return stored.toDomain(id), nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// persistErr wraps storage failures with ErrPersistence unless they already
// carry one of the domain sentinels.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		domain.ErrNotFound, domain.ErrInvalid, domain.ErrDuplicate,
		domain.ErrDimensionMismatch, domain.ErrCorruptRecord, domain.ErrPersistence,
	} {
		if errors.Is(err, sentinel) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrPersistence, err)
}

// Option configures a store.
type Option func(*options)

type options struct {
	onCorrupt port.CorruptHandler
	logger    *slog.Logger
}

// WithCorruptHandler replaces the default warning log for skipped rows.
func WithCorruptHandler(h port.CorruptHandler) Option {
	return func(o *options) { o.onCorrupt = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.onCorrupt == nil {
		logger := o.logger
		o.onCorrupt = func(id uint64, err error) {
			logger.Warn("skipping corrupt conversation", "id", id, "error", err)
		}
	}
	return o
}
