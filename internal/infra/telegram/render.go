package telegram

import (
	"attendance_bot/internal/domain/reply"

	"gopkg.in/telebot.v3"
)

const buttonsPerRow = 3

// sendReply renders a transport-independent reply as a Telegram message.
// Buttons become an inline keyboard whose callback data carries the encoded
// command token untouched.
func sendReply(c telebot.Context, rep *reply.Reply) error {
	if rep == nil {
		return nil
	}
	markup := buildMarkup(rep.Buttons)
	if markup == nil {
		return c.Send(rep.Text)
	}
	return c.Send(rep.Text, markup)
}

func buildMarkup(buttons []reply.Button) *telebot.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}

	var rows [][]telebot.InlineButton
	var row []telebot.InlineButton
	for _, b := range buttons {
		row = append(row, telebot.InlineButton{Text: b.Label, Data: b.Token})
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return &telebot.ReplyMarkup{InlineKeyboard: rows}
}
