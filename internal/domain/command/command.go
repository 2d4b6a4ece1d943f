package command

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Kind enumerates every action a UI button can carry. The set is closed:
// a token whose kind is outside it fails to decode.
type Kind string

const (
	KindStartAttendance Kind = "start_attendance"
	KindPickDay         Kind = "pick_day"
	KindEnterSearch     Kind = "enter_search"
	KindPickStudent     Kind = "pick_student"
	KindPickLesson      Kind = "pick_lesson"
	KindBackToDay       Kind = "back_to_day"
	KindEndAttendance   Kind = "end_attendance"
	KindShowRecords     Kind = "show_records"
)

// Token keys. Single letters keep tokens short enough for callback-data
// size limits even with long student names.
const (
	keyKind    = "k"
	keyWeekday = "d"
	keyStudent = "s"
	keyLesson  = "l"
)

// fieldsByKind declares which fields each kind requires. Encode emits
// exactly these fields and Decode rejects tokens that deviate.
var fieldsByKind = map[Kind]struct{ weekday, student, lesson bool }{
	KindStartAttendance: {},
	KindPickDay:         {weekday: true},
	KindEnterSearch:     {weekday: true},
	KindPickStudent:     {weekday: true, student: true},
	KindPickLesson:      {weekday: true, student: true, lesson: true},
	KindBackToDay:       {},
	KindEndAttendance:   {},
	KindShowRecords:     {},
}

// Command is the decoded form of a button token. Weekday runs 1 (Monday)
// through 7 (Sunday) when the kind requires it; Student and Lesson are
// free text and survive a full encode/decode round trip byte for byte.
type Command struct {
	Kind    Kind
	Weekday int
	Student string
	Lesson  string
}

// DecodeError reports the first offending key of a malformed token.
type DecodeError struct {
	Key    string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed command token: key %q: %s", e.Key, e.Reason)
}

// Encode serializes the command into a flat key=value token. Free-text
// values are percent-encoded so names containing '&', '=' or '%' cannot
// break the pair structure.
func (c Command) Encode() string {
	var b strings.Builder
	b.WriteString(keyKind)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(string(c.Kind)))

	f := fieldsByKind[c.Kind]
	if f.weekday {
		b.WriteByte('&')
		b.WriteString(keyWeekday)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(c.Weekday))
	}
	if f.student {
		b.WriteByte('&')
		b.WriteString(keyStudent)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(c.Student))
	}
	if f.lesson {
		b.WriteByte('&')
		b.WriteString(keyLesson)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(c.Lesson))
	}
	return b.String()
}

// Decode parses a token back into a Command. Any malformed input,
// including arbitrary non-UTF8 bytes, yields a *DecodeError naming the
// first offending key; Decode never panics.
func Decode(token string) (Command, error) {
	if token == "" {
		return Command{}, &DecodeError{Key: keyKind, Reason: "empty token"}
	}

	type pair struct{ key, value string }
	var pairs []pair
	seen := make(map[string]struct{})
	for _, raw := range strings.Split(token, "&") {
		k, v, ok := strings.Cut(raw, "=")
		if !ok {
			return Command{}, &DecodeError{Key: raw, Reason: "not a key=value pair"}
		}
		if _, dup := seen[k]; dup {
			return Command{}, &DecodeError{Key: k, Reason: "duplicate key"}
		}
		seen[k] = struct{}{}
		decoded, err := url.QueryUnescape(v)
		if err != nil {
			return Command{}, &DecodeError{Key: k, Reason: "invalid percent escape"}
		}
		pairs = append(pairs, pair{key: k, value: decoded})
	}

	values := make(map[string]string, len(pairs))
	for _, p := range pairs {
		values[p.key] = p.value
	}

	kindVal, ok := values[keyKind]
	if !ok {
		return Command{}, &DecodeError{Key: keyKind, Reason: "missing kind"}
	}
	kind := Kind(kindVal)
	f, known := fieldsByKind[kind]
	if !known {
		return Command{}, &DecodeError{Key: keyKind, Reason: fmt.Sprintf("unknown kind %q", kindVal)}
	}

	cmd := Command{Kind: kind}
	used := map[string]struct{}{keyKind: {}}

	if f.weekday {
		raw, ok := values[keyWeekday]
		if !ok {
			return Command{}, &DecodeError{Key: keyWeekday, Reason: "missing weekday"}
		}
		wd, err := strconv.Atoi(raw)
		if err != nil || wd < 1 || wd > 7 {
			return Command{}, &DecodeError{Key: keyWeekday, Reason: fmt.Sprintf("weekday %q out of range 1-7", raw)}
		}
		cmd.Weekday = wd
		used[keyWeekday] = struct{}{}
	}
	if f.student {
		raw, ok := values[keyStudent]
		if !ok || raw == "" {
			return Command{}, &DecodeError{Key: keyStudent, Reason: "missing student name"}
		}
		cmd.Student = raw
		used[keyStudent] = struct{}{}
	}
	if f.lesson {
		raw, ok := values[keyLesson]
		if !ok || raw == "" {
			return Command{}, &DecodeError{Key: keyLesson, Reason: "missing lesson amount"}
		}
		cmd.Lesson = raw
		used[keyLesson] = struct{}{}
	}

	// Reject stray keys, naming the first one in token order.
	for _, p := range pairs {
		if _, ok := used[p.key]; !ok {
			return Command{}, &DecodeError{Key: p.key, Reason: "unexpected key for kind " + kindVal}
		}
	}

	return cmd, nil
}
