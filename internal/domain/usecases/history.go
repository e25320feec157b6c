package usecases

import (
	"strings"
	"time"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"

	// dateLabelLayout renders older dates as "May 1, 2024".
	dateLabelLayout = "January 2, 2006"
)

// HistoryItemKind tells a render plan header from a message.
type HistoryItemKind string

const (
	HistoryHeader  HistoryItemKind = "header"
	HistoryMessage HistoryItemKind = "message"
)

// HistoryItem is one row of the history render plan.
type HistoryItem struct {
	Kind    HistoryItemKind       `json:"kind"`
	Label   string                `json:"label,omitempty"`
	Message *entities.ChatMessage `json:"message,omitempty"`
}

// GroupHistory turns a chronological transcript into a render plan with a
// date header before the first message and before every message whose date
// label differs from the previous one. Input order is kept as is.
func GroupHistory(messages []entities.ChatMessage, now time.Time) []HistoryItem {
	plan := make([]HistoryItem, 0, len(messages)+1)
	last := ""
	for i := range messages {
		msg := messages[i]
		label := DateLabel(msg.Timestamp, now)
		if i == 0 || label != last {
			plan = append(plan, HistoryItem{Kind: HistoryHeader, Label: label})
			last = label
		}
		plan = append(plan, HistoryItem{Kind: HistoryMessage, Message: &msg})
	}
	return plan
}

// DateLabel names the calendar day of ts relative to now, in now's location.
// A zero timestamp has no label.
func DateLabel(ts, now time.Time) string {
	if ts.IsZero() {
		return ""
	}
	day := calendarDay(ts.In(now.Location()))
	today := calendarDay(now)
	switch {
	case day.Equal(today):
		return LabelToday
	case day.Equal(today.AddDate(0, 0, -1)):
		return LabelYesterday
	}
	return ts.In(now.Location()).Format(dateLabelLayout)
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// FlattenHistory expands each stored turn into the user's query followed by
// the assistant's response, both stamped with the turn's timestamp.
// Timestamps without a zone are read in loc.
func FlattenHistory(turns []entities.HistoryTurn, loc *time.Location) []entities.ChatMessage {
	out := make([]entities.ChatMessage, 0, 2*len(turns))
	for _, turn := range turns {
		ts := ParseTimestamp(turn.Timestamp, loc)
		out = append(out,
			entities.ChatMessage{Sender: entities.SenderUser, Kind: entities.KindText, Text: turn.Query, Timestamp: ts},
			entities.ChatMessage{Sender: entities.SenderBot, Kind: entities.KindText, Text: turn.Response, Timestamp: ts},
		)
	}
	return out
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp reads an ISO-8601 instant. Values without a zone offset are
// interpreted in loc. Unparsable input yields the zero time.
func ParseTimestamp(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}
