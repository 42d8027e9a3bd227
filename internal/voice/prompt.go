package voice

import (
	"fmt"
	"strings"
	"time"
)

var categories = []string{"Personal", "Work", "Errands", "Home", "Health", "Calls", "Shopping", "Projects"}

const systemPrompt = `You turn a spoken reminder into JSON. Today is %s (%s).

Reply with one JSON object and nothing else:
{
  "text": "the task itself, without date or time words",
  "due_date": "YYYY-MM-DD or null",
  "due_time": "HH:MM:SS (24h) or null",
  "time_required": true if a clock time was stated, otherwise false,
  "priority": "urgent|important|chill|someday|waiting or null",
  "category": "%s or null",
  "location": "place name or null",
  "confidence": number between 0 and 1
}

Resolve relative dates ("tomorrow", "next friday", "in 3 days") against today.
Use null when a field was not mentioned.`

func buildPrompt(now time.Time) string {
	return fmt.Sprintf(systemPrompt,
		now.Format("2006-01-02"), now.Weekday(), strings.Join(categories, "|"))
}
