package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CachedAnswer is a previously generated answer keyed by normalized question
// and party. A nil ExpiresAt never expires.
type CachedAnswer struct {
	UUID      uuid.UUID  `json:"uuid"`
	Question  string     `json:"question"`
	Party     string     `json:"party,omitempty"`
	Answer    string     `json:"answer"`
	Sources   []Source   `json:"sources,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AnswerCache stores generated answers. Get treats rows past their
// expiry as absent and returns ErrNotFound for them.
type AnswerCache interface {
	Get(ctx context.Context, question, party string) (*CachedAnswer, error)
	// Put stores an answer, replacing any previous entry for the same
	// question and party. A zero ttl stores the entry without expiry.
	Put(ctx context.Context, answer *CachedAnswer, ttl time.Duration) error
	// PurgeExpired hard deletes expired entries.
	PurgeExpired(ctx context.Context) error
}
