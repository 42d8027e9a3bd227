package recurrence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"reminders/internal/reminder"
)

// Service ties patterns to their expanded reminders.
type Service struct {
	DB       *gorm.DB
	Patterns *Store
	Expander *Expander
}

func NewService(db *gorm.DB, exp *Expander) *Service {
	return &Service{
		DB:       db,
		Patterns: NewStore(db, exp.Clock),
		Expander: exp,
	}
}

// CreateWithInstances stores a new pattern and its instances built from
// base, all in one transaction. A pattern with no occurrence inside the
// horizon is rejected.
func (s *Service) CreateWithInstances(ctx context.Context, base reminder.Patch, pp PatternPatch, horizonDays int) (Pattern, []reminder.Reminder, error) {
	now := s.Expander.Clock.Now()

	p, err := pp.Build(now)
	if err != nil {
		return Pattern{}, nil, err
	}
	tmpl, err := base.Build("", now)
	if err != nil {
		return Pattern{}, nil, err
	}

	var out []reminder.Reminder
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewStore(tx, s.Expander.Clock).Insert(ctx, &p); err != nil {
			return err
		}
		out, err = s.Expander.ExpandTx(ctx, tx, tmpl, p, horizonDays)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			return fmt.Errorf("%w: recurrence produces no occurrences within the horizon", ErrValidation)
		}
		return nil
	})
	if err != nil {
		return Pattern{}, nil, err
	}
	return p, out, nil
}

// ExpandExisting materializes patternID using an existing reminder as the
// template. The template itself is left untouched.
func (s *Service) ExpandExisting(ctx context.Context, patternID, reminderID string, horizonDays int) ([]reminder.Reminder, error) {
	p, err := s.Patterns.Get(ctx, patternID)
	if err != nil {
		return nil, err
	}
	base, err := reminder.NewStore(s.DB, s.Expander.Clock).Get(ctx, reminderID)
	if err != nil {
		return nil, err
	}
	return s.Expander.Expand(ctx, base, p, horizonDays)
}
