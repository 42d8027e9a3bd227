package reminder

import "time"

type Priority string

const (
	PrioritySomeday   Priority = "someday"
	PriorityChill     Priority = "chill"
	PriorityImportant Priority = "important"
	PriorityUrgent    Priority = "urgent"
	PriorityWaiting   Priority = "waiting"
)

func (p Priority) Valid() bool {
	switch p {
	case PrioritySomeday, PriorityChill, PriorityImportant, PriorityUrgent, PriorityWaiting:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSnoozed   Status = "snoozed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusSnoozed:
		return true
	}
	return false
}

type Source string

const (
	SourceManual Source = "manual"
	SourceVoice  Source = "voice"
	SourceAPI    Source = "api"
)

func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceVoice, SourceAPI:
		return true
	}
	return false
}

const DefaultRadius = 100

// Reminder is a single row of the reminders table.
// DueDate is a calendar date (YYYY-MM-DD) and DueTime a time of day (HH:MM:SS).
// Timestamps are always written in UTC by the store.
type Reminder struct {
	ID   string `gorm:"primaryKey;type:text" json:"id"`
	Text string `gorm:"type:text;not null" json:"text"`

	DueDate      *string `gorm:"type:text;index" json:"due_date"`
	DueTime      *string `gorm:"type:text" json:"due_time"`
	TimeRequired bool    `gorm:"not null;default:false" json:"time_required"`

	LocationName    *string  `gorm:"type:text" json:"location_name"`
	LocationAddress *string  `gorm:"type:text" json:"location_address"`
	LocationLat     *float64 `json:"location_lat"`
	LocationLng     *float64 `json:"location_lng"`
	LocationRadius  int      `gorm:"not null;default:100" json:"location_radius"`

	Priority Priority `gorm:"type:text;not null;default:'chill';index" json:"priority"`
	Category *string  `gorm:"type:text;index" json:"category"`

	Status       Status     `gorm:"type:text;not null;default:'pending';index" json:"status"`
	CompletedAt  *time.Time `json:"completed_at"`
	SnoozedUntil *time.Time `json:"snoozed_until"`

	RecurrenceID *string `gorm:"type:text;index" json:"recurrence_id"`

	Source    Source     `gorm:"type:text;not null;default:'manual'" json:"source"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime:false;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime:false;index" json:"updated_at"`
	SyncedAt  *time.Time `json:"synced_at"`
}

// Filter narrows List and Count. Zero values mean "no filter".
type Filter struct {
	Status   *Status
	Category *string
	Priority *Priority
	Limit    int
	Offset   int
}

// Located is a reminder annotated with its distance from a query point.
type Located struct {
	Reminder
	Distance float64 `json:"distance"`
}
