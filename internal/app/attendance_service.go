package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"attendance_bot/internal/domain/command"
	"attendance_bot/internal/domain/ledger"
	"attendance_bot/internal/domain/reply"
	"attendance_bot/internal/domain/roster"
	"attendance_bot/internal/domain/session"

	"github.com/sirupsen/logrus"
)

// TextEvent is an inbound plain-text message, already verified and parsed
// by the transport.
type TextEvent struct {
	ActorID  string
	Text     string
	EventKey string
}

// PostbackEvent carries the opaque token of a tapped button.
type PostbackEvent struct {
	ActorID  string
	Token    string
	EventKey string
}

// Authorizer gates flow events to known teachers.
type Authorizer interface {
	IsAuthorized(ctx context.Context, actorID string) bool
}

// Roster resolves the assigned students for an actor and weekday.
type Roster interface {
	RosterFor(ctx context.Context, actorID string, weekday int) ([]string, error)
}

// Ledger performs balance reads and attendance commits.
type Ledger interface {
	Balance(ctx context.Context, studentName string) (float64, error)
	RecordDeduction(ctx context.Context, actorID, studentName string, amount float64, eventKey string) (ledger.Result, error)
	RecordAbsence(ctx context.Context, actorID, studentName, eventKey string) (ledger.Result, error)
	RecentEntries(ctx context.Context, actorID string, limit int) ([]ledger.Entry, error)
}

// AttendanceService is the conversation state machine. Every inbound event
// resolves to exactly one outbound reply (nil for a silent ack); all domain
// errors are translated to user-visible cards here and never escape.
type AttendanceService struct {
	auth     Authorizer
	sessions session.Store
	roster   Roster
	ledger   Ledger
	contact  string
	log      *logrus.Entry
}

func NewAttendanceService(
	auth Authorizer,
	sessions session.Store,
	r Roster,
	l Ledger,
	contactInfo string,
	log *logrus.Entry,
) *AttendanceService {
	return &AttendanceService{
		auth:     auth,
		sessions: sessions,
		roster:   r,
		ledger:   l,
		contact:  contactInfo,
		log:      log,
	}
}

// HandlePostback decodes the button token and drives the state machine.
// An undecodable token gets the generic help card.
func (s *AttendanceService) HandlePostback(ctx context.Context, ev PostbackEvent) (*reply.Reply, error) {
	cmd, err := command.Decode(ev.Token)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"actor_id": ev.ActorID,
			"token":    ev.Token,
		}).WithError(err).Warn("Undecodable postback token")
		return helpCard(), nil
	}
	return s.dispatch(ctx, ev.ActorID, ev.EventKey, cmd)
}

// HandleText routes plain text: informational commands first (open to any
// actor), then the attendance entry phrase and keyword search.
func (s *AttendanceService) HandleText(ctx context.Context, ev TextEvent) (*reply.Reply, error) {
	text := strings.TrimSpace(ev.Text)

	switch text {
	case "id", "ID", "我的ID":
		return &reply.Reply{Kind: reply.KindText, Text: fmt.Sprintf("您的用戶ID：%s", ev.ActorID)}, nil
	case "聯絡資訊", "contact":
		return &reply.Reply{Kind: reply.KindText, Text: s.contact}, nil
	}

	if text == "點名" {
		return s.dispatch(ctx, ev.ActorID, ev.EventKey, command.Command{Kind: command.KindStartAttendance})
	}

	if keyword, ok := strings.CutPrefix(text, "搜尋:"); ok {
		return s.handleSearchText(ctx, ev.ActorID, keyword)
	}
	if sess, ok := s.sessions.Get(ev.ActorID); ok && sess.Mode == session.ModeSearching {
		// While searching, any plain text is the keyword.
		return s.handleSearchText(ctx, ev.ActorID, text)
	}

	return helpCard(), nil
}

func (s *AttendanceService) handleSearchText(ctx context.Context, actorID, keyword string) (*reply.Reply, error) {
	if !s.auth.IsAuthorized(ctx, actorID) {
		return denialCard(), nil
	}
	sess, ok := s.sessions.Get(actorID)
	if !ok || sess.Weekday == 0 {
		// No weekday context to search within.
		return weekdayPickerCard(), nil
	}

	names, err := s.roster.RosterFor(ctx, actorID, sess.Weekday)
	if err != nil {
		s.log.WithField("actor_id", actorID).WithError(err).Error("Roster lookup failed during search")
		return transientFailureCard(), nil
	}
	filtered := roster.FilterByKeyword(names, keyword)

	// Search resolved: back to the ordinary picking flow.
	s.sessions.SetWeekday(actorID, sess.Weekday)
	return studentListCard(sess.Weekday, filtered), nil
}

func (s *AttendanceService) dispatch(ctx context.Context, actorID, eventKey string, cmd command.Command) (*reply.Reply, error) {
	if !s.auth.IsAuthorized(ctx, actorID) {
		s.log.WithFields(logrus.Fields{
			"actor_id": actorID,
			"kind":     string(cmd.Kind),
		}).Warn("Unauthorized actor on flow event")
		return denialCard(), nil
	}

	switch cmd.Kind {
	case command.KindStartAttendance:
		return weekdayPickerCard(), nil

	case command.KindBackToDay:
		s.sessions.Clear(actorID)
		return weekdayPickerCard(), nil

	case command.KindPickDay:
		names, err := s.roster.RosterFor(ctx, actorID, cmd.Weekday)
		if err != nil {
			s.log.WithField("actor_id", actorID).WithError(err).Error("Roster lookup failed")
			return transientFailureCard(), nil
		}
		s.sessions.SetWeekday(actorID, cmd.Weekday)
		return studentListCard(cmd.Weekday, names), nil

	case command.KindEnterSearch:
		s.sessions.SetSearching(actorID, cmd.Weekday)
		return searchPromptCard(), nil

	case command.KindPickStudent:
		balance, err := s.ledger.Balance(ctx, cmd.Student)
		if err != nil {
			if errors.Is(err, ledger.ErrStudentNotFound) {
				return studentNotFoundCard(cmd.Student), nil
			}
			s.log.WithField("student", cmd.Student).WithError(err).Error("Balance lookup failed")
			return transientFailureCard(), nil
		}
		s.sessions.SetWeekday(actorID, cmd.Weekday)
		return lessonPickerCard(cmd.Weekday, cmd.Student, balance), nil

	case command.KindPickLesson:
		return s.commitLesson(ctx, actorID, eventKey, cmd)

	case command.KindEndAttendance:
		s.sessions.Clear(actorID)
		return nil, nil

	case command.KindShowRecords:
		entries, err := s.ledger.RecentEntries(ctx, actorID, recentEntriesLimit)
		if err != nil {
			s.log.WithField("actor_id", actorID).WithError(err).Error("Recent entries lookup failed")
			return transientFailureCard(), nil
		}
		return recordsCard(entries), nil
	}

	return helpCard(), nil
}

// commitLesson performs the terminal transition: deduct or record absence,
// clear the session, and hand contextual buttons back so the actor can
// continue on the same weekday.
func (s *AttendanceService) commitLesson(ctx context.Context, actorID, eventKey string, cmd command.Command) (*reply.Reply, error) {
	logCtx := s.log.WithFields(logrus.Fields{
		"actor_id": actorID,
		"student":  cmd.Student,
		"lesson":   cmd.Lesson,
	})

	if cmd.Lesson == absentLabel {
		res, err := s.ledger.RecordAbsence(ctx, actorID, cmd.Student, eventKey)
		if err != nil {
			if errors.Is(err, ledger.ErrStudentNotFound) {
				return studentNotFoundCard(cmd.Student), nil
			}
			logCtx.WithError(err).Error("Absence commit failed")
			return transientFailureCard(), nil
		}
		logCtx.Info("Absence recorded")
		s.sessions.Clear(actorID)
		return absenceOutcomeCard(cmd.Weekday, cmd.Student, res), nil
	}

	amount, err := strconv.ParseFloat(cmd.Lesson, 64)
	if err != nil || amount <= 0 {
		logCtx.Warn("Lesson label outside the offered set")
		return helpCard(), nil
	}

	res, err := s.ledger.RecordDeduction(ctx, actorID, cmd.Student, amount, eventKey)
	if err != nil {
		var insufficient *ledger.InsufficientBalanceError
		switch {
		case errors.As(err, &insufficient):
			logCtx.Info("Deduction rejected, insufficient balance")
			return insufficientBalanceCard(cmd.Weekday, cmd.Student, insufficient), nil
		case errors.Is(err, ledger.ErrStudentNotFound):
			return studentNotFoundCard(cmd.Student), nil
		default:
			logCtx.WithError(err).Error("Deduction commit failed")
			return transientFailureCard(), nil
		}
	}

	logCtx.WithField("balance_after", res.Entry.BalanceAfter).Info("Deduction recorded")
	s.sessions.Clear(actorID)
	return deductionOutcomeCard(cmd.Weekday, cmd.Student, cmd.Lesson, res), nil
}
