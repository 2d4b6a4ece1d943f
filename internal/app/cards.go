package app

import (
	"fmt"
	"strings"

	"attendance_bot/internal/domain/command"
	"attendance_bot/internal/domain/ledger"
	"attendance_bot/internal/domain/reply"
)

// A student list longer than this gets a keyword-search button appended.
const searchAffordanceThreshold = 12

// recentEntriesLimit caps the records card.
const recentEntriesLimit = 5

var weekdayNames = [8]string{"", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六", "星期日"}

// lessonChoices are the amounts offered on the lesson picker. absentLabel
// records an absence instead of deducting.
var lessonChoices = []string{"0.5", "1", "1.5", "2"}

const absentLabel = "請假"

func weekdayPickerCard() *reply.Reply {
	buttons := make([]reply.Button, 0, 7)
	for wd := 1; wd <= 7; wd++ {
		buttons = append(buttons, reply.Button{
			Label: weekdayNames[wd],
			Token: command.Command{Kind: command.KindPickDay, Weekday: wd}.Encode(),
		})
	}
	return &reply.Reply{Kind: reply.KindWeekdayPicker, Text: "請選擇點名日", Buttons: buttons}
}

func studentListCard(weekday int, names []string) *reply.Reply {
	if len(names) == 0 {
		return &reply.Reply{
			Kind: reply.KindStudentList,
			Text: fmt.Sprintf("%s沒有安排學生", weekdayNames[weekday]),
			Buttons: []reply.Button{{
				Label: "返回選日",
				Token: command.Command{Kind: command.KindBackToDay}.Encode(),
			}},
		}
	}

	buttons := make([]reply.Button, 0, len(names)+2)
	for _, name := range names {
		buttons = append(buttons, reply.Button{
			Label: name,
			Token: command.Command{Kind: command.KindPickStudent, Weekday: weekday, Student: name}.Encode(),
		})
	}
	if len(names) > searchAffordanceThreshold {
		buttons = append(buttons, reply.Button{
			Label: "🔍 搜尋學生",
			Token: command.Command{Kind: command.KindEnterSearch, Weekday: weekday}.Encode(),
		})
	}
	buttons = append(buttons, reply.Button{
		Label: "返回選日",
		Token: command.Command{Kind: command.KindBackToDay}.Encode(),
	})

	return &reply.Reply{
		Kind:    reply.KindStudentList,
		Text:    fmt.Sprintf("%s・請選擇學生", weekdayNames[weekday]),
		Buttons: buttons,
	}
}

func searchPromptCard() *reply.Reply {
	return &reply.Reply{Kind: reply.KindSearchPrompt, Text: "請輸入學生姓名關鍵字"}
}

func lessonPickerCard(weekday int, student string, balance float64) *reply.Reply {
	buttons := make([]reply.Button, 0, len(lessonChoices)+1)
	for _, lesson := range append(append([]string{}, lessonChoices...), absentLabel) {
		buttons = append(buttons, reply.Button{
			Label: lesson,
			Token: command.Command{
				Kind:    command.KindPickLesson,
				Weekday: weekday,
				Student: student,
				Lesson:  lesson,
			}.Encode(),
		})
	}
	return &reply.Reply{
		Kind:    reply.KindLessonPicker,
		Text:    fmt.Sprintf("請選擇 %s 上課堂數（剩餘 %.1f 堂）", student, balance),
		Buttons: buttons,
	}
}

func outcomeButtons(weekday int) []reply.Button {
	return []reply.Button{
		{Label: "繼續點名", Token: command.Command{Kind: command.KindPickDay, Weekday: weekday}.Encode()},
		{Label: "結束點名", Token: command.Command{Kind: command.KindEndAttendance}.Encode()},
	}
}

func deductionOutcomeCard(weekday int, student, lesson string, res ledger.Result) *reply.Reply {
	text := fmt.Sprintf("✅ 已為 %s 記錄 %s 堂，剩餘 %.1f 堂", student, lesson, res.Entry.BalanceAfter)
	if res.Replayed {
		text = fmt.Sprintf("此筆已記錄過，未重複扣堂。%s 剩餘 %.1f 堂", student, res.Entry.BalanceAfter)
	}
	return &reply.Reply{Kind: reply.KindOutcome, Text: text, Buttons: outcomeButtons(weekday)}
}

func absenceOutcomeCard(weekday int, student string, res ledger.Result) *reply.Reply {
	text := fmt.Sprintf("📝 已為 %s 記錄請假，剩餘 %.1f 堂", student, res.Entry.BalanceAfter)
	if res.Replayed {
		text = fmt.Sprintf("此筆請假已記錄過。%s 剩餘 %.1f 堂", student, res.Entry.BalanceAfter)
	}
	return &reply.Reply{Kind: reply.KindOutcome, Text: text, Buttons: outcomeButtons(weekday)}
}

func insufficientBalanceCard(weekday int, student string, e *ledger.InsufficientBalanceError) *reply.Reply {
	return &reply.Reply{
		Kind:    reply.KindOutcome,
		Text:    fmt.Sprintf("❌ %s 剩餘堂數不足：剩 %.1f 堂，本次需 %.1f 堂", student, e.Before, e.Requested),
		Buttons: outcomeButtons(weekday),
	}
}

func recordsCard(entries []ledger.Entry) *reply.Reply {
	if len(entries) == 0 {
		return &reply.Reply{Kind: reply.KindRecords, Text: "目前沒有點名紀錄"}
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, "最近點名紀錄：")
	for _, e := range entries {
		when := e.RecordedAt.Format("01/02 15:04")
		if e.Status == ledger.StatusAbsent {
			lines = append(lines, fmt.Sprintf("%s %s 請假（剩 %.1f 堂）", when, e.StudentName, e.BalanceAfter))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s %.1f 堂（剩 %.1f 堂）", when, e.StudentName, e.Amount.Float64, e.BalanceAfter))
	}
	return &reply.Reply{Kind: reply.KindRecords, Text: strings.Join(lines, "\n")}
}

func studentNotFoundCard(student string) *reply.Reply {
	return &reply.Reply{
		Kind: reply.KindOutcome,
		Text: fmt.Sprintf("找不到學生「%s」的堂數資料，請聯絡管理員", student),
	}
}

func transientFailureCard() *reply.Reply {
	return &reply.Reply{Kind: reply.KindOutcome, Text: "系統暫時無法處理，請稍後再試"}
}

func denialCard() *reply.Reply {
	return &reply.Reply{Kind: reply.KindDenial, Text: "此功能僅限老師使用"}
}

func helpCard() *reply.Reply {
	return &reply.Reply{
		Kind: reply.KindHelp,
		Text: "請使用下方選單操作",
		Buttons: []reply.Button{{
			Label: "開始點名",
			Token: command.Command{Kind: command.KindStartAttendance}.Encode(),
		}},
	}
}
