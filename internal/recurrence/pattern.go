package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"reminders/internal/reminder"
)

var ErrNotFound = errors.New("recurrence pattern not found")

// ErrValidation is shared with the reminder package so callers can map
// both with a single errors.Is check.
var ErrValidation = reminder.ErrValidation

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return f, nil
	}
	return "", fmt.Errorf("%w: invalid frequency %q (want daily, weekly, monthly or yearly)", ErrValidation, s)
}

// Pattern is a recurrence rule. DaysOfWeek uses 0=Monday..6=Sunday.
type Pattern struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Frequency Frequency `gorm:"type:text;not null" json:"frequency"`
	Interval  int       `gorm:"not null;default:1" json:"interval"`

	DaysOfWeek  pq.Int64Array `gorm:"type:text" json:"days_of_week"`
	DayOfMonth  *int          `json:"day_of_month"`
	MonthOfYear *int          `json:"month_of_year"`

	EndDate  *string `gorm:"type:text" json:"end_date"`
	EndCount *int    `json:"end_count"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime:false" json:"created_at"`
}

func (Pattern) TableName() string { return "recurrence_patterns" }

func (p Pattern) Validate() error {
	if _, err := ParseFrequency(string(p.Frequency)); err != nil {
		return err
	}
	if p.Interval < 1 {
		return fmt.Errorf("%w: interval must be at least 1", ErrValidation)
	}
	for _, d := range p.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: days_of_week entries must be within [0, 6]", ErrValidation)
		}
	}
	if p.DayOfMonth != nil && (*p.DayOfMonth < 1 || *p.DayOfMonth > 31) {
		return fmt.Errorf("%w: day_of_month must be within [1, 31]", ErrValidation)
	}
	if p.MonthOfYear != nil && (*p.MonthOfYear < 1 || *p.MonthOfYear > 12) {
		return fmt.Errorf("%w: month_of_year must be within [1, 12]", ErrValidation)
	}
	if p.EndDate != nil {
		if _, err := reminder.ParseDate(*p.EndDate); err != nil {
			return err
		}
	}
	if p.EndCount != nil && *p.EndCount < 1 {
		return fmt.Errorf("%w: end_count must be at least 1", ErrValidation)
	}
	return nil
}

// weekdays returns the sorted, de-duplicated weekday set, or fallback
// when none is configured.
func (p Pattern) weekdays(fallback int) []int {
	if len(p.DaysOfWeek) == 0 {
		return []int{fallback}
	}
	seen := map[int]bool{}
	out := make([]int, 0, len(p.DaysOfWeek))
	for _, d := range p.DaysOfWeek {
		if !seen[int(d)] {
			seen[int(d)] = true
			out = append(out, int(d))
		}
	}
	sort.Ints(out)
	return out
}

// PatternPatch carries the optional fields of a pattern request.
type PatternPatch struct {
	Frequency   *string `json:"frequency,omitempty"`
	Interval    *int    `json:"interval,omitempty"`
	DaysOfWeek  []int64 `json:"days_of_week,omitempty"`
	DayOfMonth  *int    `json:"day_of_month,omitempty"`
	MonthOfYear *int    `json:"month_of_year,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	EndCount    *int    `json:"end_count,omitempty"`
}

// Build creates a new pattern; frequency is required and interval defaults to 1.
func (pp PatternPatch) Build(now time.Time) (Pattern, error) {
	if pp.Frequency == nil {
		return Pattern{}, fmt.Errorf("%w: frequency is required", ErrValidation)
	}
	p := Pattern{
		ID:        uuid.NewString(),
		Interval:  1,
		CreatedAt: now.UTC(),
	}
	if err := pp.apply(&p); err != nil {
		return Pattern{}, err
	}
	return p, p.Validate()
}

func (pp PatternPatch) apply(p *Pattern) error {
	if pp.Frequency != nil {
		f, err := ParseFrequency(*pp.Frequency)
		if err != nil {
			return err
		}
		p.Frequency = f
	}
	if pp.Interval != nil {
		p.Interval = *pp.Interval
	}
	if pp.DaysOfWeek != nil {
		p.DaysOfWeek = pq.Int64Array(pp.DaysOfWeek)
	}
	if pp.DayOfMonth != nil {
		p.DayOfMonth = pp.DayOfMonth
	}
	if pp.MonthOfYear != nil {
		p.MonthOfYear = pp.MonthOfYear
	}
	if pp.EndDate != nil {
		p.EndDate = pp.EndDate
	}
	if pp.EndCount != nil {
		p.EndCount = pp.EndCount
	}
	return nil
}
