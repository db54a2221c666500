package domain

import (
	"fmt"
	"math"
	"time"
)

// Feedback scores are on a 0..5 scale.
const (
	MinRating = 0.0
	MaxRating = 5.0
)

// Character is the slice of structured character data the core consumes.
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Species     string `json:"species,omitempty"`
	Description string `json:"description,omitempty"`
}

type Feedback struct {
	AccuracyA  *float64 `json:"accuracy_a,omitempty"`
	AccuracyB  *float64 `json:"accuracy_b,omitempty"`
	Creativity *float64 `json:"creativity,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
}

// FeedbackUpdate overwrites only the fields that are set.
type FeedbackUpdate Feedback

// Apply returns fb with the non-nil fields of u copied over it.
func (u FeedbackUpdate) Apply(fb Feedback) Feedback {
	if u.AccuracyA != nil {
		fb.AccuracyA = u.AccuracyA
	}
	if u.AccuracyB != nil {
		fb.AccuracyB = u.AccuracyB
	}
	if u.Creativity != nil {
		fb.Creativity = u.Creativity
	}
	if u.Notes != nil {
		fb.Notes = u.Notes
	}
	return fb
}

// Empty reports whether the update carries no fields.
func (u FeedbackUpdate) Empty() bool {
	return u.AccuracyA == nil && u.AccuracyB == nil && u.Creativity == nil && u.Notes == nil
}

// Rated reports whether any rating was given.
func (fb Feedback) Rated() bool {
	return fb.AccuracyA != nil || fb.AccuracyB != nil || fb.Creativity != nil
}

// Validate checks that every present rating is within [MinRating, MaxRating].
func (fb Feedback) Validate() error {
	for _, r := range []struct {
		name string
		v    *float64
	}{
		{"accuracy_a", fb.AccuracyA},
		{"accuracy_b", fb.AccuracyB},
		{"creativity", fb.Creativity},
	} {
		if r.v == nil {
			continue
		}
		if math.IsNaN(*r.v) || *r.v < MinRating || *r.v > MaxRating {
			return fmt.Errorf("%w: %s must be within [%g,%g], got %g", ErrInvalid, r.name, MinRating, MaxRating, *r.v)
		}
	}
	return nil
}

// Conversation is a stored dialogue with its embedding and evaluation signals.
type Conversation struct {
	ID             uint64    `json:"id"`
	UID            string    `json:"uid"`
	LocationID     string    `json:"location_id,omitempty"`
	CharacterAID   string    `json:"character_a_id"`
	CharacterAName string    `json:"character_a_name,omitempty"`
	CharacterBID   string    `json:"character_b_id"`
	CharacterBName string    `json:"character_b_name,omitempty"`
	Dialogue       string    `json:"dialogue"`
	Embedding      []float32 `json:"-"`
	Feedback       Feedback  `json:"feedback"`
	AutomatedScore float64   `json:"automated_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks a conversation before it is persisted. dimension is the
// store's fixed embedding length.
func (c Conversation) Validate(dimension int) error {
	if len(c.Embedding) == 0 {
		return fmt.Errorf("%w: conversation has no embedding", ErrInvalid)
	}
	if dimension > 0 && len(c.Embedding) != dimension {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dimension, len(c.Embedding))
	}
	for i, v := range c.Embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: embedding component %d is not finite", ErrInvalid, i)
		}
	}
	if math.IsNaN(c.AutomatedScore) || c.AutomatedScore < -1 || c.AutomatedScore > 1 {
		return fmt.Errorf("%w: automated score %g outside [-1,1]", ErrInvalid, c.AutomatedScore)
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is not set", ErrInvalid)
	}
	return c.Feedback.Validate()
}

// ScoredConversation is a search hit.
type ScoredConversation struct {
	Conversation Conversation `json:"conversation"`
	Score        float64      `json:"score"`
}

// SaveRequest is what the dialogue generator hands over for persistence.
type SaveRequest struct {
	UID        string    `json:"conversation_id,omitempty"`
	LocationID string    `json:"location_id,omitempty"`
	CharacterA Character `json:"character_a"`
	CharacterB Character `json:"character_b"`
	Dialogue   string    `json:"dialogue"`
	Feedback   Feedback  `json:"feedback"`
}

// Evaluation holds the per-anchor similarities and the stored combination.
type Evaluation struct {
	ScoreA   float64 `json:"score_a"`
	ScoreB   float64 `json:"score_b"`
	Combined float64 `json:"combined"`
	Rule     string  `json:"rule"`
}

// StoreInfo describes the embedding space a store was built with.
type StoreInfo struct {
	SchemaVersion int    `json:"schema_version"`
	Model         string `json:"model"`
	Dimension     int    `json:"dimension"`
}

type Stats struct {
	Conversations int       `json:"conversations"`
	Model         string    `json:"model"`
	Dimension     int       `json:"dimension"`
	AvgScore      float64   `json:"avg_automated_score"`
	Rated         int       `json:"rated"`
	Oldest        time.Time `json:"oldest,omitempty"`
	Newest        time.Time `json:"newest,omitempty"`
}

// Float64 and String return pointers for optional feedback fields.
func Float64(v float64) *float64 { return &v }

func String(v string) *string { return &v }
