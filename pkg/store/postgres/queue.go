package postgres

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for the task queue

	"github.com/ticobot/ticobot/pkg/models"
)

// NewPostgresConnForQueue opens a plain database/sql connection for the task
// queue. The queue subscriber manages its own transactions at an isolation
// level incompatible with the bun connection, so it gets a separate pool on
// the pgx stdlib driver. The caller owns closing it.
func NewPostgresConnForQueue(appState *models.AppState) (*sql.DB, error) {
	db, err := sql.Open("pgx", appState.Config.Store.Postgres.DSN)
	if err != nil {
		return nil, err
	}

	return db, nil
}
