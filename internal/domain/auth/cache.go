package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTTL bounds how stale the authorized set may get before the next
// check re-fetches it.
const DefaultTTL = 30 * time.Second

// Cache memoizes the authorized actor set with a TTL. The set is replaced
// atomically on refresh, so readers never observe a partially-rebuilt set,
// and a failed fetch keeps the previous set rather than clearing it.
type Cache struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
	log  *logrus.Entry

	mu          sync.RWMutex
	ids         map[string]struct{}
	refreshedAt time.Time
}

func NewCache(repo Repository, ttl time.Duration, log *logrus.Entry) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
		log:  log,
		ids:  make(map[string]struct{}),
	}
}

// IsAuthorized reports whether actorID belongs to the authorized set,
// refreshing the set first if it has aged past the TTL. A refresh failure
// is logged and answered from the stale set.
func (c *Cache) IsAuthorized(ctx context.Context, actorID string) bool {
	if err := c.Refresh(ctx, false); err != nil {
		c.log.WithError(err).Warn("Authorization refresh failed, answering from cached set")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[actorID]
	return ok
}

// Refresh re-fetches the authorized-actor table. Unless forced, it is a
// no-op while the current set is younger than the TTL.
func (c *Cache) Refresh(ctx context.Context, force bool) error {
	c.mu.RLock()
	fresh := !force && !c.refreshedAt.IsZero() && c.now().Sub(c.refreshedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	ids, err := c.repo.ListAuthorizedIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing authorized actors: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	c.mu.Lock()
	c.ids = set
	c.refreshedAt = c.now()
	c.mu.Unlock()

	c.log.WithField("actor_count", len(set)).Debug("Authorized actor set refreshed")
	return nil
}
