package jobs

import (
	"context"
	"log/slog"
	"math"
	"time"

	"reminders/internal/reminder"
)

type Worker struct {
	ID           string
	Repo         *Repo
	Reminders    *reminder.Store
	Log          *slog.Logger
	PollInterval time.Duration
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.PollInterval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for w.RunOnce(ctx) {
			}
		}
	}
}

// RunOnce claims and handles at most one job. It reports whether a job was
// handled so callers can drain the queue.
func (w *Worker) RunOnce(ctx context.Context) bool {
	job, err := w.Repo.Claim(ctx, w.ID)
	if err != nil {
		w.Log.Error("worker claim error", "worker", w.ID, "err", err)
		return false
	}
	if job == nil {
		return false
	}
	w.handle(ctx, job)
	return true
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypeSnoozeWake:
		w.handleWake(ctx, job)
	default:
		if err := w.Repo.MarkFailed(ctx, job.ID, "unknown job type"); err != nil {
			w.Log.Warn("job not marked failed", "worker", w.ID, "job_id", job.ID, "err", err)
		}
	}
}

func (w *Worker) handleWake(ctx context.Context, job *Job) {
	woke, err := w.Reminders.Wake(ctx, job.ReminderID)
	if err != nil {
		w.retry(ctx, job, err.Error())
		return
	}
	if woke {
		w.Log.Info("reminder woke from snooze", "reminder_id", job.ReminderID, "job_id", job.ID)
	}
	// Deleted, already pending or re-snoozed reminders need nothing more.
	if err := w.Repo.MarkDone(ctx, job.ID); err != nil {
		w.Log.Warn("job not marked done", "worker", w.ID, "job_id", job.ID, "err", err)
	}
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		w.Log.Warn("job failed permanently", "job_id", job.ID, "attempts", attempts, "err", errMsg)
		if err := w.Repo.MarkFailed(ctx, job.ID, errMsg); err != nil {
			w.Log.Warn("job not marked failed", "worker", w.ID, "job_id", job.ID, "err", err)
		}
		return
	}

	next := w.Repo.now().Add(Backoff(attempts))
	if err := w.Repo.RetryLater(ctx, job.ID, attempts, next, errMsg); err != nil {
		w.Log.Warn("job retry not scheduled", "worker", w.ID, "job_id", job.ID, "err", err)
	}
}

// Backoff is 2^attempts seconds, capped at ten minutes.
func Backoff(attempts int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	return time.Duration(sec) * time.Second
}
