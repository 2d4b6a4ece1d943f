package database

import (
	"context"
	"database/sql"
	"fmt"

	"attendance_bot/internal/domain/ledger"
)

// PostgresLedgerRepository exposes the student balance table and the
// append-only attendance log as plain row/cell primitives. Student names
// are a natural key with no uniqueness guarantee upstream; both reads and
// writes resolve to the first matching row (lowest id), matching observed
// upstream behavior. No method opens a transaction: the ledger service owns
// serialization and does not rely on store-level atomicity.
type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

func (r *PostgresLedgerRepository) GetBalance(ctx context.Context, studentName string) (float64, error) {
	query := `SELECT balance FROM students WHERE name = $1 ORDER BY id LIMIT 1`

	var balance float64
	err := r.db.QueryRowContext(ctx, query, studentName).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ledger.ErrStudentNotFound
		}
		return 0, fmt.Errorf("error reading balance: %w", err)
	}
	return balance, nil
}

func (r *PostgresLedgerRepository) SetBalance(ctx context.Context, studentName string, balance float64) error {
	query := `UPDATE students SET balance = $2
               WHERE id = (SELECT id FROM students WHERE name = $1 ORDER BY id LIMIT 1)`

	res, err := r.db.ExecContext(ctx, query, studentName, balance)
	if err != nil {
		return fmt.Errorf("error writing balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking balance write: %w", err)
	}
	if affected == 0 {
		return ledger.ErrStudentNotFound
	}
	return nil
}

func (r *PostgresLedgerRepository) AppendEntry(ctx context.Context, e ledger.Entry) error {
	query := `INSERT INTO attendance_log
               (recorded_at, actor_id, student_name, amount, status, balance_after, event_key)
               VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		e.RecordedAt, e.ActorID, e.StudentName, e.Amount, string(e.Status), e.BalanceAfter, e.EventKey)
	if err != nil {
		return fmt.Errorf("error appending attendance entry: %w", err)
	}
	return nil
}

func (r *PostgresLedgerRepository) FindEntryByEventKey(ctx context.Context, eventKey string) (*ledger.Entry, error) {
	query := `SELECT recorded_at, actor_id, student_name, amount, status, balance_after, event_key
               FROM attendance_log WHERE event_key = $1`

	e := &ledger.Entry{}
	var status string
	err := r.db.QueryRowContext(ctx, query, eventKey).Scan(
		&e.RecordedAt, &e.ActorID, &e.StudentName, &e.Amount, &status, &e.BalanceAfter, &e.EventKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrEntryNotFound
		}
		return nil, fmt.Errorf("error finding attendance entry: %w", err)
	}
	e.Status = ledger.Status(status)
	return e, nil
}

func (r *PostgresLedgerRepository) ListRecent(ctx context.Context, actorID string, limit int) ([]ledger.Entry, error) {
	query := `SELECT recorded_at, actor_id, student_name, amount, status, balance_after, event_key
               FROM attendance_log WHERE actor_id = $1
               ORDER BY recorded_at DESC, id DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing attendance entries: %w", err)
	}
	defer rows.Close()

	entries := make([]ledger.Entry, 0, limit)
	for rows.Next() {
		var e ledger.Entry
		var status string
		if err := rows.Scan(&e.RecordedAt, &e.ActorID, &e.StudentName, &e.Amount, &status, &e.BalanceAfter, &e.EventKey); err != nil {
			return nil, fmt.Errorf("error scanning attendance entry: %w", err)
		}
		e.Status = ledger.Status(status)
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance entries: %w", err)
	}
	return entries, nil
}
