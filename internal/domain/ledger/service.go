package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// InsufficientBalanceError rejects a deduction that would take the balance
// below zero. The store is left untouched.
type InsufficientBalanceError struct {
	Before    float64
	Requested float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %.1f, requested %.1f", e.Before, e.Requested)
}

// Result describes a committed attendance record. Replayed is true when the
// event key had already been committed and the stored entry was returned
// instead of applying the operation again.
type Result struct {
	Entry    Entry
	Replayed bool
}

// Service performs balance mutations against the remote store. The store
// offers no compare-and-swap, so every read-modify-write for one student
// name is serialized through a per-name mutex; two concurrent deductions
// for the same student cannot clobber each other's write.
type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
	log  *logrus.Entry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(repo Repository, loc *time.Location, log *logrus.Entry) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:  repo,
		loc:   loc,
		now:   time.Now,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(studentName string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[studentName]
	if !ok {
		l = &sync.Mutex{}
		s.locks[studentName] = l
	}
	return l
}

// Balance returns the student's current remaining balance.
func (s *Service) Balance(ctx context.Context, studentName string) (float64, error) {
	balance, err := s.repo.GetBalance(ctx, studentName)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("reading balance for %s: %w", studentName, err)
	}
	return balance, nil
}

// RecordDeduction deducts amount lessons from the student's balance and
// appends an audit entry. The balance never goes negative through this
// path: a deduction that would end below zero aborts with
// *InsufficientBalanceError before any write. The balance write and the
// log append are sequential with no atomicity between them.
func (s *Service) RecordDeduction(ctx context.Context, actorID, studentName string, amount float64, eventKey string) (Result, error) {
	l := s.lockFor(studentName)
	l.Lock()
	defer l.Unlock()

	if res, done, err := s.replayed(ctx, eventKey); done || err != nil {
		return res, err
	}

	before, err := s.repo.GetBalance(ctx, studentName)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("reading balance for %s: %w", studentName, err)
	}

	after := round2(before - amount)
	if after < 0 {
		return Result{}, &InsufficientBalanceError{Before: before, Requested: amount}
	}

	if err := s.repo.SetBalance(ctx, studentName, after); err != nil {
		return Result{}, fmt.Errorf("writing balance for %s: %w", studentName, err)
	}

	entry := Entry{
		RecordedAt:   s.now().In(s.loc),
		ActorID:      actorID,
		StudentName:  studentName,
		Amount:       sql.NullFloat64{Float64: amount, Valid: true},
		Status:       StatusAttended,
		BalanceAfter: after,
		EventKey:     eventKey,
	}
	if err := s.repo.AppendEntry(ctx, entry); err != nil {
		// The deduction is committed; only the audit row is missing.
		s.log.WithError(err).WithFields(logrus.Fields{
			"student": studentName,
			"actor":   actorID,
		}).Error("Balance deducted but audit append failed")
		return Result{}, fmt.Errorf("appending attendance entry for %s: %w", studentName, err)
	}

	return Result{Entry: entry}, nil
}

// RecordAbsence appends an absence entry without touching the balance.
func (s *Service) RecordAbsence(ctx context.Context, actorID, studentName, eventKey string) (Result, error) {
	l := s.lockFor(studentName)
	l.Lock()
	defer l.Unlock()

	if res, done, err := s.replayed(ctx, eventKey); done || err != nil {
		return res, err
	}

	balance, err := s.repo.GetBalance(ctx, studentName)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("reading balance for %s: %w", studentName, err)
	}

	entry := Entry{
		RecordedAt:   s.now().In(s.loc),
		ActorID:      actorID,
		StudentName:  studentName,
		Status:       StatusAbsent,
		BalanceAfter: balance,
		EventKey:     eventKey,
	}
	if err := s.repo.AppendEntry(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("appending absence entry for %s: %w", studentName, err)
	}

	return Result{Entry: entry}, nil
}

// RecentEntries returns the actor's latest log rows, most recent first.
func (s *Service) RecentEntries(ctx context.Context, actorID string, limit int) ([]Entry, error) {
	entries, err := s.repo.ListRecent(ctx, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent entries for actor %s: %w", actorID, err)
	}
	return entries, nil
}

// replayed short-circuits an event key that has already been committed.
// The chat platform delivers at least once; a redelivered pick must not
// deduct twice.
func (s *Service) replayed(ctx context.Context, eventKey string) (Result, bool, error) {
	prev, err := s.repo.FindEntryByEventKey(ctx, eventKey)
	if err == nil {
		s.log.WithField("event_key", eventKey).Info("Duplicate event delivery, returning original outcome")
		return Result{Entry: *prev, Replayed: true}, true, nil
	}
	if errors.Is(err, ErrEntryNotFound) {
		return Result{}, false, nil
	}
	return Result{}, false, fmt.Errorf("checking event key %s: %w", eventKey, err)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
