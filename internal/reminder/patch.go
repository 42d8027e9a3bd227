package reminder

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (want YYYY-MM-DD)", ErrValidation, s)
	}
	return d, nil
}

// NormalizeTime accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func NormalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) == len("15:04") {
		s += ":00"
	}
	if _, err := time.Parse(TimeLayout, s); err != nil {
		return "", fmt.Errorf("%w: invalid time %q (want HH:MM:SS)", ErrValidation, s)
	}
	return s, nil
}

// Patch is a partial reminder. A nil field is left untouched by Update;
// Build uses it as the payload of a new reminder.
type Patch struct {
	Text *string `json:"text,omitempty"`

	DueDate      *string `json:"due_date,omitempty"`
	DueTime      *string `json:"due_time,omitempty"`
	TimeRequired *bool   `json:"time_required,omitempty"`

	LocationName    *string  `json:"location_name,omitempty"`
	LocationAddress *string  `json:"location_address,omitempty"`
	LocationLat     *float64 `json:"location_lat,omitempty"`
	LocationLng     *float64 `json:"location_lng,omitempty"`
	LocationRadius  *int     `json:"location_radius,omitempty"`

	Priority *Priority `json:"priority,omitempty"`
	Category *string   `json:"category,omitempty"`

	Status       *Status    `json:"status,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`

	RecurrenceID *string `json:"recurrence_id,omitempty"`
	Source       *Source `json:"source,omitempty"`
}

func (p Patch) Empty() bool {
	return p == Patch{}
}

// Validate checks field ranges and normalizes DueTime in place.
func (p *Patch) Validate() error {
	if p.Text != nil {
		n := utf8.RuneCountInString(strings.TrimSpace(*p.Text))
		if n < 1 || n > 1000 {
			return fmt.Errorf("%w: text must be 1-1000 characters", ErrValidation)
		}
	}
	if p.DueDate != nil {
		if _, err := ParseDate(*p.DueDate); err != nil {
			return err
		}
	}
	if p.DueTime != nil {
		t, err := NormalizeTime(*p.DueTime)
		if err != nil {
			return err
		}
		p.DueTime = &t
	}
	if err := maxLen("location_name", p.LocationName, 500); err != nil {
		return err
	}
	if err := maxLen("location_address", p.LocationAddress, 1000); err != nil {
		return err
	}
	if err := maxLen("category", p.Category, 100); err != nil {
		return err
	}
	if p.LocationLat != nil && (*p.LocationLat < -90 || *p.LocationLat > 90) {
		return fmt.Errorf("%w: location_lat must be within [-90, 90]", ErrValidation)
	}
	if p.LocationLng != nil && (*p.LocationLng < -180 || *p.LocationLng > 180) {
		return fmt.Errorf("%w: location_lng must be within [-180, 180]", ErrValidation)
	}
	if p.LocationRadius != nil && (*p.LocationRadius < 10 || *p.LocationRadius > 10000) {
		return fmt.Errorf("%w: location_radius must be within [10, 10000]", ErrValidation)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, *p.Priority)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, *p.Status)
	}
	if p.Source != nil && !p.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, *p.Source)
	}
	return nil
}

func maxLen(field string, v *string, n int) error {
	if v != nil && utf8.RuneCountInString(*v) > n {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrValidation, field, n)
	}
	return nil
}

// Build turns the patch into a new reminder with defaults applied.
// An empty id gets a fresh UUID.
func (p Patch) Build(id string, now time.Time) (Reminder, error) {
	if p.Text == nil {
		return Reminder{}, fmt.Errorf("%w: text is required", ErrValidation)
	}
	if err := p.Validate(); err != nil {
		return Reminder{}, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	now = now.UTC()

	r := Reminder{
		ID:             id,
		LocationRadius: DefaultRadius,
		Priority:       PriorityChill,
		Status:         StatusPending,
		Source:         SourceManual,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	p.apply(&r, now)
	return r, nil
}

// apply copies every set field onto r, including the completed_at rule.
func (p Patch) apply(r *Reminder, now time.Time) {
	if p.Text != nil {
		r.Text = strings.TrimSpace(*p.Text)
	}
	if p.DueDate != nil {
		r.DueDate = p.DueDate
	}
	if p.DueTime != nil {
		r.DueTime = p.DueTime
	}
	if p.TimeRequired != nil {
		r.TimeRequired = *p.TimeRequired
	}
	if p.LocationName != nil {
		r.LocationName = p.LocationName
	}
	if p.LocationAddress != nil {
		r.LocationAddress = p.LocationAddress
	}
	if p.LocationLat != nil {
		r.LocationLat = p.LocationLat
	}
	if p.LocationLng != nil {
		r.LocationLng = p.LocationLng
	}
	if p.LocationRadius != nil {
		r.LocationRadius = *p.LocationRadius
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.Category != nil {
		r.Category = p.Category
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.SnoozedUntil != nil {
		t := p.SnoozedUntil.UTC()
		r.SnoozedUntil = &t
	}
	if p.RecurrenceID != nil {
		r.RecurrenceID = p.RecurrenceID
	}
	if p.Source != nil {
		r.Source = *p.Source
	}

	switch {
	case p.CompletedAt != nil:
		t := p.CompletedAt.UTC()
		r.CompletedAt = &t
	case p.Status != nil && *p.Status == StatusCompleted:
		r.CompletedAt = &now
	case p.Status != nil:
		r.CompletedAt = nil
	}
}

// columns maps the set fields to column values for an UPDATE.
func (p Patch) columns(now time.Time) map[string]any {
	var r Reminder
	p.apply(&r, now)

	cols := map[string]any{"updated_at": now}
	set := func(ok bool, col string, v any) {
		if ok {
			cols[col] = v
		}
	}
	set(p.Text != nil, "text", r.Text)
	set(p.DueDate != nil, "due_date", r.DueDate)
	set(p.DueTime != nil, "due_time", r.DueTime)
	set(p.TimeRequired != nil, "time_required", r.TimeRequired)
	set(p.LocationName != nil, "location_name", r.LocationName)
	set(p.LocationAddress != nil, "location_address", r.LocationAddress)
	set(p.LocationLat != nil, "location_lat", r.LocationLat)
	set(p.LocationLng != nil, "location_lng", r.LocationLng)
	set(p.LocationRadius != nil, "location_radius", r.LocationRadius)
	set(p.Priority != nil, "priority", r.Priority)
	set(p.Category != nil, "category", r.Category)
	set(p.Status != nil, "status", r.Status)
	set(p.CompletedAt != nil || p.Status != nil, "completed_at", r.CompletedAt)
	set(p.SnoozedUntil != nil, "snoozed_until", r.SnoozedUntil)
	set(p.RecurrenceID != nil, "recurrence_id", r.RecurrenceID)
	set(p.Source != nil, "source", r.Source)
	return cols
}
