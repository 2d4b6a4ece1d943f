package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssignmentRepo struct {
	rows []Assignment
	err  error
}

func (f *fakeAssignmentRepo) ListByActor(ctx context.Context, actorID string) ([]Assignment, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []Assignment
	for _, row := range f.rows {
		if row.ActorID == actorID {
			out = append(out, row)
		}
	}
	return out, nil
}

func TestRosterForDeduplicatesAndPreservesOrder(t *testing.T) {
	repo := &fakeAssignmentRepo{rows: []Assignment{
		{ActorID: "t1", StudentName: "小明", Weekday: "3"},
		{ActorID: "t1", StudentName: "小華", Weekday: "3"},
		{ActorID: "t1", StudentName: "小明", Weekday: "3"}, // duplicate row
		{ActorID: "t1", StudentName: "小美", Weekday: "3"},
		{ActorID: "t1", StudentName: "小強", Weekday: "4"}, // other weekday
		{ActorID: "t2", StudentName: "路人", Weekday: "3"}, // other actor
	}}
	r := NewResolver(repo)

	for i := 0; i < 3; i++ {
		names, err := r.RosterFor(context.Background(), "t1", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"小明", "小華", "小美"}, names,
			"rescan %d must be deterministic", i)
	}
}

func TestRosterForSkipsMalformedWeekdays(t *testing.T) {
	repo := &fakeAssignmentRepo{rows: []Assignment{
		{ActorID: "t1", StudentName: "好行", Weekday: " 2 "}, // surrounding whitespace is fine
		{ActorID: "t1", StudentName: "壞行一", Weekday: "two"},
		{ActorID: "t1", StudentName: "壞行二", Weekday: "0"},
		{ActorID: "t1", StudentName: "壞行三", Weekday: "8"},
		{ActorID: "t1", StudentName: "壞行四", Weekday: ""},
	}}
	r := NewResolver(repo)

	names, err := r.RosterFor(context.Background(), "t1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"好行"}, names)
}

func TestRosterForPropagatesRepositoryError(t *testing.T) {
	repo := &fakeAssignmentRepo{err: errors.New("store down")}
	r := NewResolver(repo)

	_, err := r.RosterFor(context.Background(), "t1", 1)
	assert.Error(t, err)
}

func TestFilterByKeyword(t *testing.T) {
	roster := []string{"陳小明", "林小華", "陳大同", "Amy Chen"}

	tests := []struct {
		name    string
		keyword string
		want    []string
	}{
		{name: "substring match", keyword: "小", want: []string{"陳小明", "林小華"}},
		{name: "surname match", keyword: "陳", want: []string{"陳小明", "陳大同"}},
		{name: "no match", keyword: "王", want: []string{}},
		{name: "case sensitive", keyword: "amy", want: []string{}},
		{name: "whitespace sensitive", keyword: "Amy ", want: []string{"Amy Chen"}},
		{name: "empty keyword returns input", keyword: "", want: roster},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterByKeyword(roster, tt.keyword))
		})
	}
}
