package recurrence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"gorm.io/gorm"

	"reminders/internal/reminder"
)

const (
	DefaultHorizonDays = 90
	MaxHorizonDays     = 3650
)

// Expander materializes recurrence patterns into concrete reminders.
type Expander struct {
	DB    *gorm.DB
	Clock clock.Clock

	HorizonDays    int
	MaxHorizonDays int
}

func NewExpander(db *gorm.DB, clk clock.Clock, horizonDays, maxHorizonDays int) *Expander {
	if clk == nil {
		clk = clock.New()
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	if maxHorizonDays <= 0 {
		maxHorizonDays = MaxHorizonDays
	}
	return &Expander{DB: db, Clock: clk, HorizonDays: horizonDays, MaxHorizonDays: maxHorizonDays}
}

func (e *Expander) horizon(days int) (int, error) {
	if days == 0 {
		return e.HorizonDays, nil
	}
	if days < 0 || days > e.MaxHorizonDays {
		return 0, fmt.Errorf("%w: horizon_days must be within [1, %d]", ErrValidation, e.MaxHorizonDays)
	}
	return days, nil
}

// Instances builds, without persisting, one reminder per occurrence of p.
// Each copies base with a new id, the occurrence date as due_date and
// recurrence_id pointing at p. horizonDays of 0 uses the default.
func (e *Expander) Instances(base reminder.Reminder, p Pattern, horizonDays int) ([]reminder.Reminder, error) {
	days, err := e.horizon(horizonDays)
	if err != nil {
		return nil, err
	}

	now := e.Clock.Now().UTC()
	today := midnight(now)
	start := today
	if base.DueDate != nil {
		if start, err = reminder.ParseDate(*base.DueDate); err != nil {
			return nil, err
		}
	}
	if start.Before(today.AddDate(0, 0, -e.MaxHorizonDays)) {
		return nil, fmt.Errorf("%w: due_date must be within %d days of today", ErrValidation, e.MaxHorizonDays)
	}

	dates, err := Occurrences(p, start, today.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}

	out := make([]reminder.Reminder, 0, len(dates))
	for _, d := range dates {
		inst := base
		inst.ID = uuid.NewString()
		due := d.Format(reminder.DateLayout)
		inst.DueDate = &due
		pid := p.ID
		inst.RecurrenceID = &pid
		inst.CreatedAt = now
		inst.UpdatedAt = now
		inst.SyncedAt = nil
		out = append(out, inst)
	}
	return out, nil
}

// Expand builds the instances and writes them in a single transaction.
func (e *Expander) Expand(ctx context.Context, base reminder.Reminder, p Pattern, horizonDays int) ([]reminder.Reminder, error) {
	var out []reminder.Reminder
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = e.ExpandTx(ctx, tx, base, p, horizonDays)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpandTx is Expand within a caller-owned transaction.
func (e *Expander) ExpandTx(ctx context.Context, tx *gorm.DB, base reminder.Reminder, p Pattern, horizonDays int) ([]reminder.Reminder, error) {
	out, err := e.Instances(base, p, horizonDays)
	if err != nil {
		return nil, err
	}
	store := reminder.NewStore(tx, e.Clock)
	if err := store.InsertBatch(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}
