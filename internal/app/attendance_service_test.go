package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"attendance_bot/internal/domain/command"
	"attendance_bot/internal/domain/ledger"
	"attendance_bot/internal/domain/reply"
	"attendance_bot/internal/domain/session"
	"attendance_bot/internal/infra/memstore"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthorizer struct {
	allowed map[string]bool
}

func (f *fakeAuthorizer) IsAuthorized(ctx context.Context, actorID string) bool {
	return f.allowed[actorID]
}

type fakeRoster struct {
	rosters map[int][]string
	err     error
}

func (f *fakeRoster) RosterFor(ctx context.Context, actorID string, weekday int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rosters[weekday], nil
}

type fakeLedger struct {
	balances   map[string]float64
	entries    []ledger.Entry
	committed  map[string]ledger.Entry
	failWith   error
	deductions int
}

func newFakeLedger(balances map[string]float64) *fakeLedger {
	return &fakeLedger{balances: balances, committed: make(map[string]ledger.Entry)}
}

func (f *fakeLedger) Balance(ctx context.Context, studentName string) (float64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	b, ok := f.balances[studentName]
	if !ok {
		return 0, ledger.ErrStudentNotFound
	}
	return b, nil
}

func (f *fakeLedger) RecordDeduction(ctx context.Context, actorID, studentName string, amount float64, eventKey string) (ledger.Result, error) {
	if f.failWith != nil {
		return ledger.Result{}, f.failWith
	}
	if prev, ok := f.committed[eventKey]; ok {
		return ledger.Result{Entry: prev, Replayed: true}, nil
	}
	before, ok := f.balances[studentName]
	if !ok {
		return ledger.Result{}, ledger.ErrStudentNotFound
	}
	after := before - amount
	if after < 0 {
		return ledger.Result{}, &ledger.InsufficientBalanceError{Before: before, Requested: amount}
	}
	f.balances[studentName] = after
	f.deductions++
	entry := ledger.Entry{
		ActorID:      actorID,
		StudentName:  studentName,
		Status:       ledger.StatusAttended,
		BalanceAfter: after,
		EventKey:     eventKey,
	}
	f.entries = append(f.entries, entry)
	f.committed[eventKey] = entry
	return ledger.Result{Entry: entry}, nil
}

func (f *fakeLedger) RecordAbsence(ctx context.Context, actorID, studentName, eventKey string) (ledger.Result, error) {
	if f.failWith != nil {
		return ledger.Result{}, f.failWith
	}
	balance, ok := f.balances[studentName]
	if !ok {
		return ledger.Result{}, ledger.ErrStudentNotFound
	}
	entry := ledger.Entry{
		ActorID:      actorID,
		StudentName:  studentName,
		Status:       ledger.StatusAbsent,
		BalanceAfter: balance,
		EventKey:     eventKey,
	}
	f.entries = append(f.entries, entry)
	return ledger.Result{Entry: entry}, nil
}

func (f *fakeLedger) RecentEntries(ctx context.Context, actorID string, limit int) ([]ledger.Entry, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []ledger.Entry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].ActorID == actorID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

type fixture struct {
	svc      *AttendanceService
	auth     *fakeAuthorizer
	roster   *fakeRoster
	ledger   *fakeLedger
	sessions *memstore.SessionStore
}

func newFixture() *fixture {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)

	auth := &fakeAuthorizer{allowed: map[string]bool{"teacher": true}}
	ros := &fakeRoster{rosters: map[int][]string{
		3: {"小明", "小華", "小美"},
	}}
	led := newFakeLedger(map[string]float64{"小明": 2.0, "小華": 0.5, "小美": 4.0})
	sessions := memstore.NewSessionStore(10 * time.Minute)

	return &fixture{
		svc:      NewAttendanceService(auth, sessions, ros, led, "聯絡電話：02-1234-5678", logrus.NewEntry(l)),
		auth:     auth,
		roster:   ros,
		ledger:   led,
		sessions: sessions,
	}
}

func (f *fixture) postback(t *testing.T, actorID string, cmd command.Command) *reply.Reply {
	t.Helper()
	rep, err := f.svc.HandlePostback(context.Background(), PostbackEvent{
		ActorID:  actorID,
		Token:    cmd.Encode(),
		EventKey: fmt.Sprintf("ev-%d", len(f.ledger.entries)+len(f.ledger.committed)),
	})
	require.NoError(t, err)
	return rep
}

func buttonLabels(rep *reply.Reply) []string {
	labels := make([]string, 0, len(rep.Buttons))
	for _, b := range rep.Buttons {
		labels = append(labels, b.Label)
	}
	return labels
}

func TestUnauthorizedPickDayGetsDenialAndNoSession(t *testing.T) {
	f := newFixture()

	rep := f.postback(t, "stranger", command.Command{Kind: command.KindPickDay, Weekday: 3})
	require.NotNil(t, rep)
	assert.Equal(t, reply.KindDenial, rep.Kind)

	_, ok := f.sessions.Get("stranger")
	assert.False(t, ok, "denied events must not create a session")
}

func TestStartAttendanceShowsWeekdayPicker(t *testing.T) {
	f := newFixture()

	rep := f.postback(t, "teacher", command.Command{Kind: command.KindStartAttendance})
	require.NotNil(t, rep)
	assert.Equal(t, reply.KindWeekdayPicker, rep.Kind)
	require.Len(t, rep.Buttons, 7)

	cmd, err := command.Decode(rep.Buttons[0].Token)
	require.NoError(t, err)
	assert.Equal(t, command.KindPickDay, cmd.Kind)
	assert.Equal(t, 1, cmd.Weekday)
}

func TestPickDayEmitsStudentListAndSetsSession(t *testing.T) {
	f := newFixture()

	rep := f.postback(t, "teacher", command.Command{Kind: command.KindPickDay, Weekday: 3})
	require.NotNil(t, rep)
	assert.Equal(t, reply.KindStudentList, rep.Kind)
	assert.Contains(t, buttonLabels(rep), "小明")
	assert.NotContains(t, buttonLabels(rep), "🔍 搜尋學生", "small roster needs no search button")

	sess, ok := f.sessions.Get("teacher")
	require.True(t, ok)
	assert.Equal(t, 3, sess.Weekday)
	assert.Equal(t, session.ModeIdle, sess.Mode)
}

func TestLargeRosterGetsSearchAffordance(t *testing.T) {
	f := newFixture()
	many := make([]string, 13)
	for i := range many {
		many[i] = fmt.Sprintf("學生%02d", i+1)
	}
	f.roster.rosters[3] = many

	rep := f.postback(t, "teacher", command.Command{Kind: command.KindPickDay, Weekday: 3})
	require.NotNil(t, rep)
	assert.Contains(t, buttonLabels(rep), "🔍 搜尋學生")
}

func TestPickStudentShowsLessonPickerWithBalance(t *testing.T) {
	f := newFixture()

	rep := f.postback(t, "teacher", command.Command{Kind: command.KindPickStudent, Weekday: 3, Student: "小明"})
	require.NotNil(t, rep)
	assert.Equal(t, reply.KindLessonPicker, rep.Kind)
	assert.Contains(t, rep.Text, "小明")
	assert.Contains(t, rep.Text, "2.0")
	assert.Equal(t, []string{"0.5", "1", "1.5", "2", "請假"}, buttonLabels(rep))
}

func TestPickLessonDeductsAndClearsSession(t *testing.T) {
	f := newFixture()
	f.postback(t, "teacher", command.Command{Kind: command.KindPickDay, Weekday: 3})

	rep := f.postback(t, "teacher", command.Command{
		Kind: command.KindPickLesson, Weekday: 3, Student: "小明", Lesson: "1.5",
	})
	require.NotNil(t, rep)
	assert.Equal(t, reply.KindOutcome, rep.Kind)
	assert.Contains(t, rep.Text, "✅")
	assert.Contains(t, rep.Text, "0.5")
	assert.InDelta(t, 0.5, f.ledger.balances["小明"], 1e-9)

	_, ok := f.sessions.Get("teacher")
	assert.False(t, ok, "commit clears the session")

	// The outcome card routes back into the weekday flow.
	cmd, err := command.Decode(rep.Buttons[0].Token)
	require.NoError(t, err)
	assert.Equal(t, command.KindPickDay, cmd.Kind)
	assert.Equal(t, 3, cmd.Weekday)
}

func TestPickLessonInsufficientBalance(t *testing.T) {
	f := newFixture()

	rep := f.postback(t, "teacher", command.Command{
		Kind: command.KindPickLesson, Weekday: 3, Student: "小華", Lesson: "1",
	})
	require.NotNil(t, rep)
	assert.Contains(t, rep.Text, "❌")
	assert.Contains(t, rep.Text, "0.5")
	assert.Contains(t, rep.Text, "1.0")
	assert.InDelta(t, 0.5, f.ledger.balances["小華"], 1e-9, "balance unchanged")
	assert.Empty(t, f.ledger.entries)
}

func TestPickLessonAbsence(t *testing.T) {
	f := newFixture()

	rep := f.postback(t, "teacher", command.Command{
		Kind: command.KindPickLesson, Weekday: 3, Student: "小美", Lesson: "請假",
	})
	require.NotNil(t, rep)
	assert.Contains(t, rep.Text, "請假")
	assert.InDelta(t, 4.0, f.ledger.balances["小美"], 1e-9)
	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, ledger.StatusAbsent, f.ledger.entries[0].Status)
}

func TestDuplicateDeliveryDoesNotDoubleDeduct(t *testing.T) {
	f := newFixture()
	cmd := command.Command{Kind: command.KindPickLesson, Weekday: 3, Student: "小明", Lesson: "1"}

	for i := 0; i < 2; i++ {
		rep, err := f.svc.HandlePostback(context.Background(), PostbackEvent{
			ActorID:  "teacher",
			Token:    cmd.Encode(),
			EventKey: "same-delivery-id",
		})
		require.NoError(t, err)
		require.NotNil(t, rep)
	}

	assert.Equal(t, 1, f.ledger.deductions)
	assert.InDelta(t, 1.0, f.ledger.balances["小明"], 1e-9)
}

func TestUnknownStudentGetsExplicitMessage(t *testing.T) {
	f := newFixture()

	rep := f.postback(t, "teacher", command.Command{Kind: command.KindPickStudent, Weekday: 3, Student: "不存在"})
	require.NotNil(t, rep)
	assert.Contains(t, rep.Text, "找不到學生")
}

func TestLedgerOutageGetsTransientCard(t *testing.T) {
	f := newFixture()
	f.ledger.failWith = errors.New("remote store timeout")

	rep := f.postback(t, "teacher", command.Command{
		Kind: command.KindPickLesson, Weekday: 3, Student: "小明", Lesson: "1",
	})
	require.NotNil(t, rep)
	assert.Contains(t, rep.Text, "稍後再試")
}

func TestEndAttendanceIsSilentAndClearsSession(t *testing.T) {
	f := newFixture()
	f.postback(t, "teacher", command.Command{Kind: command.KindPickDay, Weekday: 3})

	rep := f.postback(t, "teacher", command.Command{Kind: command.KindEndAttendance})
	assert.Nil(t, rep, "end_attendance is a silent ack")

	_, ok := f.sessions.Get("teacher")
	assert.False(t, ok)
}

func TestBackToDayReturnsWeekdayPicker(t *testing.T) {
	f := newFixture()
	f.postback(t, "teacher", command.Command{Kind: command.KindPickDay, Weekday: 3})

	rep := f.postback(t, "teacher", command.Command{Kind: command.KindBackToDay})
	require.NotNil(t, rep)
	assert.Equal(t, reply.KindWeekdayPicker, rep.Kind)

	_, ok := f.sessions.Get("teacher")
	assert.False(t, ok)
}

func TestGarbageTokenGetsHelpCard(t *testing.T) {
	f := newFixture()

	rep, err := f.svc.HandlePostback(context.Background(), PostbackEvent{
		ActorID: "teacher", Token: "k=launch_missiles", EventKey: "ev-x",
	})
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, reply.KindHelp, rep.Kind)
}

func TestSearchFlow(t *testing.T) {
	f := newFixture()
	f.roster.rosters[3] = []string{"陳小明", "林小華", "陳大同"}

	rep := f.postback(t, "teacher", command.Command{Kind: command.KindEnterSearch, Weekday: 3})
	require.NotNil(t, rep)
	assert.Equal(t, reply.KindSearchPrompt, rep.Kind)

	sess, ok := f.sessions.Get("teacher")
	require.True(t, ok)
	assert.Equal(t, session.ModeSearching, sess.Mode)

	// While searching, plain text is the keyword.
	listRep, err := f.svc.HandleText(context.Background(), TextEvent{ActorID: "teacher", Text: "陳", EventKey: "ev-t"})
	require.NoError(t, err)
	require.NotNil(t, listRep)
	assert.Equal(t, reply.KindStudentList, listRep.Kind)
	assert.Equal(t, []string{"陳小明", "陳大同", "返回選日"}, buttonLabels(listRep),
		"filter preserves original order")

	sess, ok = f.sessions.Get("teacher")
	require.True(t, ok)
	assert.Equal(t, session.ModeIdle, sess.Mode, "search resolved back into the picking flow")
}

func TestSearchPrefixTextRequiresWeekdayContext(t *testing.T) {
	f := newFixture()

	rep, err := f.svc.HandleText(context.Background(), TextEvent{ActorID: "teacher", Text: "搜尋:陳", EventKey: "ev-t"})
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, reply.KindWeekdayPicker, rep.Kind, "no session means no weekday to search within")

	f.postback(t, "teacher", command.Command{Kind: command.KindPickDay, Weekday: 3})
	rep, err = f.svc.HandleText(context.Background(), TextEvent{ActorID: "teacher", Text: "搜尋:小", EventKey: "ev-t2"})
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, reply.KindStudentList, rep.Kind)
	assert.Equal(t, []string{"小明", "小華", "小美", "返回選日"}, buttonLabels(rep))
}

func TestInformationalCommandsBypassAuthorization(t *testing.T) {
	f := newFixture()

	rep, err := f.svc.HandleText(context.Background(), TextEvent{ActorID: "stranger", Text: "id", EventKey: "ev-t"})
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Contains(t, rep.Text, "stranger")

	rep, err = f.svc.HandleText(context.Background(), TextEvent{ActorID: "stranger", Text: "聯絡資訊", EventKey: "ev-t2"})
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Contains(t, rep.Text, "02-1234-5678")
}

func TestUnrecognizedTextGetsHelpCard(t *testing.T) {
	f := newFixture()

	rep, err := f.svc.HandleText(context.Background(), TextEvent{ActorID: "teacher", Text: "你好", EventKey: "ev-t"})
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, reply.KindHelp, rep.Kind)
}

func TestShowRecords(t *testing.T) {
	f := newFixture()
	f.postback(t, "teacher", command.Command{Kind: command.KindPickLesson, Weekday: 3, Student: "小明", Lesson: "1"})

	rep := f.postback(t, "teacher", command.Command{Kind: command.KindShowRecords})
	require.NotNil(t, rep)
	assert.Equal(t, reply.KindRecords, rep.Kind)
	assert.Contains(t, rep.Text, "小明")
}
