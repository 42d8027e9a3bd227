package jobs

import "time"

const (
	TypeSnoozeWake = "SNOOZE_WAKE"

	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusDone      = "DONE"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

type Job struct {
	ID         uint64 `gorm:"primaryKey"`
	Type       string `gorm:"type:text;not null"` // SNOOZE_WAKE
	ReminderID string `gorm:"type:text;not null;index"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"type:text;index;not null;default:'PENDING'"` // PENDING/RUNNING/DONE/FAILED/CANCELLED

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:8"`

	LockedBy *string `gorm:"type:text"`
	LockedAt *time.Time

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}
