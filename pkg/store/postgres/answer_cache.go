package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/ticobot/ticobot/pkg/models"
	"github.com/ticobot/ticobot/pkg/store"
	"github.com/uptrace/bun"
)

// NewAnswerCache returns a new AnswerCache. Use this to correctly initialize
// the cache.
func NewAnswerCache(
	appState *models.AppState,
	client *bun.DB,
) (*AnswerCache, error) {
	if appState == nil {
		return nil, store.NewStorageError("nil appState received", nil)
	}

	ac := &AnswerCache{
		BaseAnswerCache: store.BaseAnswerCache[*bun.DB]{Client: client},
		appState:        appState,
	}

	return ac, nil
}

// Force compiler to validate that AnswerCache implements the AnswerCache
// interface.
var _ models.AnswerCache = &AnswerCache{}

type AnswerCache struct {
	store.BaseAnswerCache[*bun.DB]
	appState *models.AppState
}

// NormalizeQuestion maps a question to its cache key: lower case, whitespace
// collapsed, trailing punctuation dropped. "What does X say?" and
// " what does x say " share an entry.
func NormalizeQuestion(question string) string {
	q := strings.ToLower(question)
	q = strings.Join(strings.Fields(q), " ")
	q = strings.TrimRightFunc(q, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return q
}

// Get retrieves the cached answer for a question and party. Expired entries
// are treated as absent.
func (ac *AnswerCache) Get(
	ctx context.Context,
	question string,
	party string,
) (*models.CachedAnswer, error) {
	key := NormalizeQuestion(question)
	if key == "" {
		return nil, models.NewBadRequestError("question cannot be empty")
	}

	cached := AnswerCacheSchema{}
	err := ac.Client.NewSelect().
		Model(&cached).
		Where("question = ?", key).
		Where("party = ?", party).
		Where("(expires_at IS NULL OR expires_at > ?)", time.Now()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("cached answer for question")
		}
		return nil, store.NewStorageError("failed to get cached answer", err)
	}

	return answerCacheSchemaToCachedAnswer(&cached)
}

// Put stores an answer, replacing any previous entry for the same question
// and party. A zero ttl stores the entry without expiry.
func (ac *AnswerCache) Put(
	ctx context.Context,
	answer *models.CachedAnswer,
	ttl time.Duration,
) error {
	if answer == nil {
		return models.NewBadRequestError("nil answer received")
	}
	key := NormalizeQuestion(answer.Question)
	if key == "" {
		return models.NewBadRequestError("question cannot be empty")
	}
	if answer.Answer == "" {
		return models.NewBadRequestError("answer cannot be empty")
	}

	var sources []byte
	if len(answer.Sources) > 0 {
		var err error
		sources, err = json.Marshal(answer.Sources)
		if err != nil {
			return store.NewStorageError("failed to marshal answer sources", err)
		}
	}

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	cached := AnswerCacheSchema{
		Question:  key,
		Party:     answer.Party,
		Answer:    answer.Answer,
		Sources:   sources,
		ExpiresAt: expiresAt,
	}
	_, err := ac.Client.NewInsert().
		Model(&cached).
		Column("question", "party", "answer", "sources", "expires_at").
		On("CONFLICT (question, party) DO UPDATE"). // we'll do an upsert
		Returning("*").
		Exec(ctx)
	if err != nil {
		return store.NewStorageError("failed to put cached answer", err)
	}

	return nil
}

// PurgeExpired hard deletes entries past their expiry.
func (ac *AnswerCache) PurgeExpired(ctx context.Context) error {
	purged, err := purgeExpiredAnswers(ctx, ac.Client)
	if err != nil {
		return store.NewStorageError("failed to purge expired answers", err)
	}
	if purged > 0 {
		log.Infof("purged %d expired cached answers", purged)
	}

	return nil
}

func answerCacheSchemaToCachedAnswer(
	cached *AnswerCacheSchema,
) (*models.CachedAnswer, error) {
	answer := &models.CachedAnswer{
		UUID:      cached.UUID,
		Question:  cached.Question,
		Party:     cached.Party,
		Answer:    cached.Answer,
		CreatedAt: cached.CreatedAt,
		ExpiresAt: cached.ExpiresAt,
	}
	if len(cached.Sources) > 0 {
		if err := json.Unmarshal(cached.Sources, &answer.Sources); err != nil {
			return nil, store.NewStorageError("failed to unmarshal answer sources", err)
		}
	}

	return answer, nil
}
