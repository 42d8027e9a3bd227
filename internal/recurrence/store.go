package recurrence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmhodges/clock"
	"gorm.io/gorm"

	"reminders/internal/reminder"
)

type Store struct {
	DB    *gorm.DB
	Clock clock.Clock
}

func NewStore(db *gorm.DB, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{DB: db, Clock: clk}
}

func (s *Store) Get(ctx context.Context, id string) (Pattern, error) {
	var p Pattern
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Pattern{}, ErrNotFound
		}
		return Pattern{}, fmt.Errorf("get pattern: %w", err)
	}
	return p, nil
}

func (s *Store) Insert(ctx context.Context, p *Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.Clock.Now().UTC()
	}
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("insert pattern: %w", err)
	}
	return nil
}

// Update merges pp into the stored pattern and validates the result
// before writing it back.
func (s *Store) Update(ctx context.Context, id string, pp PatternPatch) (Pattern, error) {
	var out Pattern
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ts := &Store{DB: tx, Clock: s.Clock}
		p, err := ts.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := pp.apply(&p); err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if err := tx.Save(&p).Error; err != nil {
			return fmt.Errorf("update pattern: %w", err)
		}
		out = p
		return nil
	})
	return out, err
}

// Delete removes the pattern and unlinks every reminder that referenced
// it. The reminders themselves are kept.
func (s *Store) Delete(ctx context.Context, id string) (unlinked int64, err error) {
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := reminder.NewStore(tx, s.Clock).Unlink(ctx, id)
		if err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Pattern{})
		if res.Error != nil {
			return fmt.Errorf("delete pattern: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		unlinked = n
		return nil
	})
	return unlinked, err
}
