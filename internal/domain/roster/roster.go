package roster

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Assignment is one row of the assignment table relating an actor to a
// student on one weekday. Weekday is kept as the raw cell text because the
// upstream table carries no type enforcement; rows with unparsable values
// are skipped during resolution, not treated as fatal.
type Assignment struct {
	ActorID     string
	StudentName string
	Weekday     string
}

// Repository provides the assignment rows for one actor.
type Repository interface {
	ListByActor(ctx context.Context, actorID string) ([]Assignment, error)
}

// Resolver derives weekday rosters from raw assignment rows.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// RosterFor returns the students assigned to the actor on the given
// weekday (1=Monday .. 7=Sunday), deduplicated with first occurrence
// winning and insertion order preserved.
func (r *Resolver) RosterFor(ctx context.Context, actorID string, weekday int) ([]string, error) {
	rows, err := r.repo.ListByActor(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("listing assignments for actor %s: %w", actorID, err)
	}

	seen := make(map[string]struct{})
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		wd, err := strconv.Atoi(strings.TrimSpace(row.Weekday))
		if err != nil || wd < 1 || wd > 7 {
			continue
		}
		if wd != weekday {
			continue
		}
		if _, dup := seen[row.StudentName]; dup {
			continue
		}
		seen[row.StudentName] = struct{}{}
		names = append(names, row.StudentName)
	}
	return names, nil
}

// FilterByKeyword keeps the names containing keyword as an exact substring
// (case- and whitespace-sensitive), preserving order. An empty keyword
// returns the input unchanged.
func FilterByKeyword(names []string, keyword string) []string {
	if keyword == "" {
		return names
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if strings.Contains(name, keyword) {
			out = append(out, name)
		}
	}
	return out
}
