package database

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresAuthRepository reads the authorized-actor table. The table
// mirrors the upstream sheet layout: a display name column followed by the
// platform actor id; only the id column matters for authorization.
type PostgresAuthRepository struct {
	db *sql.DB
}

func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{db: db}
}

func (r *PostgresAuthRepository) ListAuthorizedIDs(ctx context.Context) ([]string, error) {
	query := `SELECT actor_id FROM authorized_actors`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing authorized actors: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning authorized actor: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating authorized actors: %w", err)
	}
	return ids, nil
}
