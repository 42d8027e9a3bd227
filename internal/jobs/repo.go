package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/jmhodges/clock"
	"gorm.io/gorm"

	"reminders/internal/reminder"
)

// StuckAfter is how long a RUNNING job may hold its lock before it is
// handed back to the queue.
const StuckAfter = 5 * time.Minute

var errNoJob = errors.New("no job due")

type Repo struct {
	DB    *gorm.DB
	Clock clock.Clock
}

func NewRepo(db *gorm.DB, clk clock.Clock) *Repo {
	if clk == nil {
		clk = clock.New()
	}
	return &Repo{DB: db, Clock: clk}
}

func (r *Repo) now() time.Time { return r.Clock.Now().UTC() }

// EnqueueSnoozeWake schedules a wake-up for reminderID at runAt, replacing
// any wake-up already pending for it.
func (r *Repo) EnqueueSnoozeWake(ctx context.Context, reminderID string, runAt time.Time) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()
		if err := cancelPending(tx, reminderID, now); err != nil {
			return err
		}
		j := Job{
			Type:        TypeSnoozeWake,
			ReminderID:  reminderID,
			RunAt:       runAt.UTC(),
			Status:      StatusPending,
			MaxAttempts: 8,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.Create(&j).Error
	})
}

func (r *Repo) CancelSnoozeWake(ctx context.Context, reminderID string) error {
	return cancelPending(r.DB.WithContext(ctx), reminderID, r.now())
}

func cancelPending(tx *gorm.DB, reminderID string, now time.Time) error {
	return tx.Model(&Job{}).
		Where("reminder_id = ? AND type = ? AND status = ?", reminderID, TypeSnoozeWake, StatusPending).
		Updates(map[string]any{"status": StatusCancelled, "updated_at": now}).Error
}

// Schedule keeps the wake-up queue in line with a reminder's current state:
// a snoozed reminder with snoozed_until gets a job, anything else has its
// pending job cancelled.
func (r *Repo) Schedule(ctx context.Context, rem reminder.Reminder) error {
	if rem.Status == reminder.StatusSnoozed && rem.SnoozedUntil != nil {
		return r.EnqueueSnoozeWake(ctx, rem.ID, *rem.SnoozedUntil)
	}
	return r.CancelSnoozeWake(ctx, rem.ID)
}

// Claim picks the oldest due job and marks it RUNNING for workerID.
// The conditional update makes a concurrent claim of the same row lose.
// It returns nil when nothing is due.
func (r *Repo) Claim(ctx context.Context, workerID string) (*Job, error) {
	var job Job
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()

		// requeue stuck RUNNING jobs
		if err := tx.Model(&Job{}).
			Where("status = ? AND locked_at IS NOT NULL AND locked_at < ?", StatusRunning, now.Add(-StuckAfter)).
			Updates(map[string]any{
				"status":     StatusPending,
				"locked_by":  nil,
				"locked_at":  nil,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		q := tx.Where("status = ? AND run_at <= ?", StatusPending, now).
			Order("run_at asc").Order("id asc").
			Limit(1).
			Find(&job)
		if q.Error != nil {
			return q.Error
		}
		if q.RowsAffected == 0 {
			return errNoJob
		}

		res := tx.Model(&Job{}).
			Where("id = ? AND status = ?", job.ID, StatusPending).
			Updates(map[string]any{
				"status":     StatusRunning,
				"locked_by":  workerID,
				"locked_at":  now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNoJob
		}
		job.Status = StatusRunning
		job.LockedBy = &workerID
		job.LockedAt = &now
		return nil
	})
	if errors.Is(err, errNoJob) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *Repo) MarkDone(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).
		Updates(map[string]any{"status": StatusDone, "updated_at": r.now()}).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).
		Updates(map[string]any{"status": StatusFailed, "last_error": errMsg, "updated_at": r.now()}).Error
}

func (r *Repo) RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusPending,
			"attempts":   attempts,
			"run_at":     runAt.UTC(),
			"locked_by":  nil,
			"locked_at":  nil,
			"last_error": errMsg,
			"updated_at": r.now(),
		}).Error
}
