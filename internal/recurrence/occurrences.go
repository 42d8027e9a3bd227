package recurrence

import (
	"fmt"
	"time"

	"reminders/internal/reminder"
)

// Occurrences lists the dates produced by p from start up to and including
// until, further bounded by the pattern's end date and end count. All dates
// are UTC midnights.
func Occurrences(p Pattern, start, until time.Time) ([]time.Time, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	start = midnight(start)
	until = midnight(until)
	if p.EndDate != nil {
		end, err := reminder.ParseDate(*p.EndDate)
		if err != nil {
			return nil, err
		}
		if end.Before(until) {
			until = end
		}
	}

	var out []time.Time
	// emit records c and reports whether the walk should go on.
	emit := func(c time.Time) bool {
		if c.After(until) {
			return false
		}
		if p.EndCount != nil && len(out) >= *p.EndCount {
			return false
		}
		out = append(out, c)
		return p.EndCount == nil || len(out) < *p.EndCount
	}

	switch p.Frequency {
	case Daily:
		for k := 0; emit(start.AddDate(0, 0, k*p.Interval)); k++ {
		}

	case Weekly:
		// Weeks are 7-day blocks beginning on the start date; every
		// interval-th block is visited.
		days := p.weekdays(mondayIndex(start))
	blocks:
		for block := start; !block.After(until); block = block.AddDate(0, 0, 7*p.Interval) {
			for offset := 0; offset < 7; offset++ {
				c := block.AddDate(0, 0, offset)
				if !contains(days, mondayIndex(c)) {
					continue
				}
				if !emit(c) {
					break blocks
				}
			}
		}

	case Monthly:
		day := start.Day()
		if p.DayOfMonth != nil {
			day = *p.DayOfMonth
		}
		for k := 0; ; k++ {
			c := clampDate(start.Year(), start.Month()+time.Month(k*p.Interval), day)
			if c.Before(start) {
				continue
			}
			if !emit(c) {
				break
			}
		}

	case Yearly:
		month, day := start.Month(), start.Day()
		if p.MonthOfYear != nil {
			month = time.Month(*p.MonthOfYear)
		}
		if p.DayOfMonth != nil {
			day = *p.DayOfMonth
		}
		for k := 0; ; k++ {
			c := clampDate(start.Year()+k*p.Interval, month, day)
			if c.Before(start) {
				continue
			}
			if !emit(c) {
				break
			}
		}

	default:
		return nil, fmt.Errorf("%w: invalid frequency %q", ErrValidation, p.Frequency)
	}

	return out, nil
}

// clampDate builds year/month/day, moving day back to the last day of the
// month when the month is shorter. month may be out of range; it is
// normalized first.
func clampDate(year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// mondayIndex maps time.Weekday to 0=Monday..6=Sunday.
func mondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
