package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// softDeleteTableList holds the schemas carrying a deleted_at column, chunks
// before their parent documents.
var softDeleteTableList = []bun.BeforeCreateTableHook{
	&ChunkSchema{},
	&DocumentSchema{},
}

// purgeDeleted hard deletes all soft deleted records from the document store.
func purgeDeleted(ctx context.Context, db *bun.DB) error {
	log.Debugf("purging document store")

	for _, schema := range softDeleteTableList {
		log.Debugf("purging schema %T", schema)
		_, err := db.NewDelete().
			Model(schema).
			WhereDeleted().
			ForceDelete().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("error purging rows from %T: %w", schema, err)
		}
	}
	log.Info("completed purging document store")

	return nil
}

// purgeExpiredAnswers hard deletes answer cache rows whose expiry has passed.
// Rows without an expiry are never purged.
func purgeExpiredAnswers(ctx context.Context, db *bun.DB) (int, error) {
	r, err := db.NewDelete().
		Model((*AnswerCacheSchema)(nil)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("error purging expired answers: %w", err)
	}
	rowsAffected, err := r.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}
