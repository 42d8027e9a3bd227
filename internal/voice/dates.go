package voice

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"reminders/internal/reminder"
)

// Named times checked before the rule parser. Exact ones come first so
// "noon" never falls through to a vague match.
var (
	exactTimes = []namedTime{
		{"midnight", "00:00:00"},
		{"noon", "12:00:00"},
		{"12pm", "12:00:00"},
		{"12am", "00:00:00"},
	}
	vagueTimes = []namedTime{
		{"morning", "09:00:00"},
		{"afternoon", "14:00:00"},
		{"evening", "20:00:00"},
		{"tonight", "20:00:00"},
		{"night", "21:00:00"},
	}
)

type namedTime struct {
	word  string
	value string
}

var weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

var months = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var pastWords = []string{"last", "past", "ago", "yesterday"}

var dateRules = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// naturalDate resolves phrases like "tomorrow" or "next friday" against
// now. Bare weekday and month-day phrases that land in the past move
// forward to their next occurrence.
func naturalDate(s string, now time.Time) (string, bool) {
	res, err := dateRules.Parse(s, now)
	if err != nil || res == nil {
		return "", false
	}
	d := res.Time
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	lower := strings.ToLower(s)
	if d.Before(today) && !containsAny(lower, pastWords) {
		switch {
		case containsAny(lower, months):
			d = d.AddDate(1, 0, 0)
		case containsAny(lower, weekdays):
			d = d.AddDate(0, 0, 7)
		}
	}
	return d.Format(reminder.DateLayout), true
}

// naturalTime returns an HH:MM:SS value and whether the phrase named an
// exact time. Vague parts of the day map to a default hour.
func naturalTime(s string, now time.Time) (string, bool, bool) {
	lower := strings.ToLower(s)
	for _, n := range exactTimes {
		if strings.Contains(lower, n.word) {
			return n.value, true, true
		}
	}
	for _, n := range vagueTimes {
		if strings.Contains(lower, n.word) {
			return n.value, false, true
		}
	}

	res, err := dateRules.Parse(s, now)
	if err != nil || res == nil {
		return "", false, false
	}
	return res.Time.Format("15:04") + ":00", true, true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
