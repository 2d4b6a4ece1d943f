package memstore

import (
	"sync"
	"time"

	"attendance_bot/internal/domain/session"
)

// SessionStore is an in-memory, TTL-bounded implementation of
// session.Store. Expired entries are evicted on the read path; a stale
// entry costs nothing but a little memory until then, so there is no
// background sweep.
type SessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]session.Session
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	return &SessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]session.Session),
	}
}

func (s *SessionStore) Get(actorID string) (session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[actorID]
	if !ok {
		return session.Session{}, false
	}
	if s.now().Sub(sess.RefreshedAt) > s.ttl {
		delete(s.sessions, actorID)
		return session.Session{}, false
	}
	return sess, true
}

func (s *SessionStore) SetWeekday(actorID string, weekday int) {
	s.set(actorID, session.Session{Mode: session.ModeIdle, Weekday: weekday})
}

func (s *SessionStore) SetSearching(actorID string, weekday int) {
	s.set(actorID, session.Session{Mode: session.ModeSearching, Weekday: weekday})
}

func (s *SessionStore) set(actorID string, sess session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.RefreshedAt = s.now()
	s.sessions[actorID] = sess
}

func (s *SessionStore) Clear(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, actorID)
}
