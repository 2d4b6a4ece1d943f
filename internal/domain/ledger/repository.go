package ledger

import "context"

// Repository exposes the raw row and cell primitives of the remote store.
// The store offers no transactions, locking or compare-and-swap, so none of
// these methods may be assumed atomic with respect to each other; the
// Service layers its guarantees on top.
type Repository interface {
	// GetBalance returns the balance of the first row matching the
	// student's name, or ErrStudentNotFound. Names are not guaranteed
	// unique upstream.
	GetBalance(ctx context.Context, studentName string) (float64, error)

	// SetBalance overwrites the balance cell of the first matching row,
	// or returns ErrStudentNotFound.
	SetBalance(ctx context.Context, studentName string, balance float64) error

	// AppendEntry appends one row to the attendance log.
	AppendEntry(ctx context.Context, entry Entry) error

	// FindEntryByEventKey returns the log row committed under the given
	// event key, or ErrEntryNotFound.
	FindEntryByEventKey(ctx context.Context, eventKey string) (*Entry, error)

	// ListRecent returns up to limit log rows for one actor, most recent
	// first.
	ListRecent(ctx context.Context, actorID string, limit int) ([]Entry, error)
}
