package session

import "time"

// Mode distinguishes the ordinary picking flow from keyword-search input.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeSearching Mode = "searching"
)

// DefaultTTL is the inactivity window after which a session is treated as
// absent.
const DefaultTTL = 10 * time.Minute

// Session is the per-actor conversation state between inbound events.
// Weekday is 1 (Monday) through 7 (Sunday) once the actor has picked a day.
type Session struct {
	Mode        Mode
	Weekday     int
	RefreshedAt time.Time
}

// Store keeps sessions keyed by actor id. Implementations must be safe for
// concurrent use and evict entries older than the TTL lazily on read; there
// is no cross-actor visibility.
type Store interface {
	Get(actorID string) (Session, bool)
	SetWeekday(actorID string, weekday int)
	SetSearching(actorID string, weekday int)
	Clear(actorID string)
}
