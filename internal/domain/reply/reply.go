package reply

// Kind names the card shape the transport should render. The core selects
// a shape and fills its semantic fields; visual encoding belongs to the
// transport adapter.
type Kind string

const (
	KindWeekdayPicker Kind = "weekday_picker"
	KindStudentList   Kind = "student_list"
	KindSearchPrompt  Kind = "search_prompt"
	KindLessonPicker  Kind = "lesson_picker"
	KindOutcome       Kind = "outcome"
	KindRecords       Kind = "records"
	KindDenial        Kind = "denial"
	KindHelp          Kind = "help"
	KindText          Kind = "text"
)

// Button is one tappable choice. Token is an encoded command that the
// platform round-trips back untouched when the button is tapped.
type Button struct {
	Label string
	Token string
}

// Reply is the transport-independent outbound message. A nil *Reply means
// a silent acknowledgement with no visible message.
type Reply struct {
	Kind    Kind
	Text    string
	Buttons []Button
}
