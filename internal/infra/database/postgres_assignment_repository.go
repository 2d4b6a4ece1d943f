package database

import (
	"context"
	"database/sql"
	"fmt"

	"attendance_bot/internal/domain/roster"
)

// PostgresAssignmentRepository reads the (actor, student, weekday)
// assignment table. The weekday column is TEXT because the upstream data
// has no type enforcement; the roster resolver skips unparsable values.
type PostgresAssignmentRepository struct {
	db *sql.DB
}

func NewPostgresAssignmentRepository(db *sql.DB) *PostgresAssignmentRepository {
	return &PostgresAssignmentRepository{db: db}
}

func (r *PostgresAssignmentRepository) ListByActor(ctx context.Context, actorID string) ([]roster.Assignment, error) {
	query := `SELECT actor_id, student_name, weekday
               FROM assignments WHERE actor_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("error listing assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]roster.Assignment, 0)
	for rows.Next() {
		var a roster.Assignment
		if err := rows.Scan(&a.ActorID, &a.StudentName, &a.Weekday); err != nil {
			return nil, fmt.Errorf("error scanning assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return assignments, nil
}
