package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"attendance_bot/internal/app"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAttendanceHandlers wires text messages and button callbacks into
// the attendance service. Each inbound event gets its own bounded context:
// a hung remote-store call fails the event instead of wedging the poller.
func RegisterAttendanceHandlers(
	b *telebot.Bot,
	svc *app.AttendanceService,
	requestTimeout time.Duration,
	baseLogger *logrus.Entry,
) {
	b.Handle(telebot.OnText, func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		ev := app.TextEvent{
			ActorID:  actorID(c),
			Text:     c.Text(),
			EventKey: textEventKey(c),
		}

		rep, err := svc.HandleText(ctx, ev)
		if err != nil {
			baseLogger.WithField("actor_id", ev.ActorID).WithError(err).Error("Text event failed")
			return nil
		}
		return sendReply(c, rep)
	})

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		ev := app.PostbackEvent{
			ActorID:  actorID(c),
			Token:    strings.TrimSpace(c.Callback().Data),
			EventKey: callbackEventKey(c),
		}

		rep, err := svc.HandlePostback(ctx, ev)
		if err != nil {
			baseLogger.WithField("actor_id", ev.ActorID).WithError(err).Error("Postback event failed")
			return c.Respond(&telebot.CallbackResponse{Text: "系統錯誤，請稍後再試"})
		}
		if rep == nil {
			// Silent ack: just release the button's loading state.
			return c.Respond()
		}
		if err := sendReply(c, rep); err != nil {
			return err
		}
		return c.Respond()
	})
}

func actorID(c telebot.Context) string {
	return strconv.FormatInt(c.Sender().ID, 10)
}

// callbackEventKey is the idempotency key for a button tap. The platform's
// callback id is unique per delivery; redeliveries reuse it, which is
// exactly what lets the ledger dedupe them.
func callbackEventKey(c telebot.Context) string {
	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return cb.ID
	}
	return uuid.NewString()
}

func textEventKey(c telebot.Context) string {
	if msg := c.Message(); msg != nil && c.Chat() != nil {
		return fmt.Sprintf("msg-%d-%d", c.Chat().ID, msg.ID)
	}
	return uuid.NewString()
}
