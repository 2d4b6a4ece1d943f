package ledger

import (
	"database/sql"
	"errors"
	"time"
)

// Status marks how a lesson was resolved in the audit log.
type Status string

const (
	StatusAttended Status = "attended"
	StatusAbsent   Status = "absent"
)

// Entry is one immutable row of the append-only attendance log. Amount is
// null for absence records. EventKey is the inbound delivery id of the
// event that committed this entry; it dedupes redelivered events.
type Entry struct {
	RecordedAt   time.Time
	ActorID      string
	StudentName  string
	Amount       sql.NullFloat64
	Status       Status
	BalanceAfter float64
	EventKey     string
}

var (
	// ErrStudentNotFound means no balance row matched the student's name.
	// The ledger never creates rows implicitly.
	ErrStudentNotFound = errors.New("student not found in balance table")

	// ErrEntryNotFound means no log row carries the given event key.
	ErrEntryNotFound = errors.New("attendance entry not found")
)
