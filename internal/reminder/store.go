package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reminders/internal/geo"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
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

// WithTx returns a store bound to an open transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{DB: tx, Clock: s.Clock}
}

func (s *Store) now() time.Time {
	return s.Clock.Now().UTC()
}

func (s *Store) Get(ctx context.Context, id string) (Reminder, error) {
	var r Reminder
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Reminder{}, ErrNotFound
		}
		return Reminder{}, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

// GetForUpdate reads a row with FOR UPDATE where the engine supports it.
// Call it inside a transaction.
func (s *Store) GetForUpdate(ctx context.Context, id string) (Reminder, error) {
	var r Reminder
	err := s.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Reminder{}, ErrNotFound
		}
		return Reminder{}, fmt.Errorf("lock reminder: %w", err)
	}
	return r, nil
}

func (s *Store) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := s.DB.WithContext(ctx).Model(&Reminder{})
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Category != nil {
		q = q.Where("category = ?", *f.Category)
	}
	if f.Priority != nil {
		q = q.Where("priority = ?", *f.Priority)
	}
	return q
}

// List returns reminders newest-created first.
func (s *Store) List(ctx context.Context, f Filter) ([]Reminder, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	out := []Reminder{}
	err := s.filtered(ctx, f).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, f Filter) (int64, error) {
	var n int64
	if err := s.filtered(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count reminders: %w", err)
	}
	return n, nil
}

// Insert writes r, filling in a missing id and timestamps.
func (s *Store) Insert(ctx context.Context, r *Reminder) error {
	now := s.now()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	if r.LocationRadius == 0 {
		r.LocationRadius = DefaultRadius
	}
	if r.Priority == "" {
		r.Priority = PriorityChill
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.Source == "" {
		r.Source = SourceManual
	}
	if err := s.DB.WithContext(ctx).Create(r).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: id %s", ErrDuplicate, r.ID)
		}
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// InsertBatch writes all rows in one statement batch.
func (s *Store) InsertBatch(ctx context.Context, rs []Reminder) error {
	if len(rs) == 0 {
		return nil
	}
	if err := s.DB.WithContext(ctx).CreateInBatches(rs, 100).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert reminders: %w", err)
	}
	return nil
}

// Update applies the set fields of p and refreshes updated_at.
func (s *Store) Update(ctx context.Context, id string, p Patch) (Reminder, error) {
	if err := p.Validate(); err != nil {
		return Reminder{}, err
	}

	var out Reminder
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ts := s.WithTx(tx)
		if _, err := ts.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if err := tx.Model(&Reminder{}).Where("id = ?", id).Updates(p.columns(s.now())).Error; err != nil {
			return fmt.Errorf("update reminder: %w", err)
		}
		var err error
		out, err = ts.Get(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&Reminder{})
	if res.Error != nil {
		return fmt.Errorf("delete reminder: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ChangedSince returns rows with updated_at after since (all rows when nil),
// oldest change first, skipping the given ids.
func (s *Store) ChangedSince(ctx context.Context, since *time.Time, exclude []string) ([]Reminder, error) {
	q := s.DB.WithContext(ctx).Model(&Reminder{})
	if since != nil {
		q = q.Where("updated_at > ?", since.UTC())
	}
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}

	out := []Reminder{}
	if err := q.Order("updated_at asc").Order("id asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("changed since: %w", err)
	}
	return out, nil
}

func (s *Store) MarkSynced(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.DB.WithContext(ctx).Model(&Reminder{}).
		Where("id IN ?", ids).
		UpdateColumn("synced_at", at.UTC()).Error
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// Unlink clears recurrence_id on every reminder pointing at patternID.
func (s *Store) Unlink(ctx context.Context, patternID string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&Reminder{}).
		Where("recurrence_id = ?", patternID).
		Updates(map[string]any{
			"recurrence_id": nil,
			"updated_at":    s.now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("unlink reminders: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Wake returns a snoozed reminder to pending once its snooze has elapsed.
// It reports false when the reminder is gone, no longer snoozed or
// snoozed past now.
func (s *Store) Wake(ctx context.Context, id string) (bool, error) {
	now := s.now()
	res := s.DB.WithContext(ctx).Model(&Reminder{}).
		Where("id = ? AND status = ?", id, StatusSnoozed).
		Where("snoozed_until IS NULL OR snoozed_until <= ?", now).
		Updates(map[string]any{
			"status":        StatusPending,
			"snoozed_until": nil,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("wake reminder: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Near returns reminders whose location lies within radius metres of
// (lat, lng), closest first.
func (s *Store) Near(ctx context.Context, lat, lng, radius float64) ([]Located, error) {
	box := geo.BoundingBox(lat, lng, radius)

	var rows []Reminder
	err := s.DB.WithContext(ctx).
		Where("location_lat IS NOT NULL AND location_lng IS NOT NULL").
		Where("location_lat BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("location_lng BETWEEN ? AND ?", box.MinLng, box.MaxLng).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("near location: %w", err)
	}

	out := []Located{}
	for _, r := range rows {
		d := geo.Distance(lat, lng, *r.LocationLat, *r.LocationLng)
		if d <= radius {
			out = append(out, Located{Reminder: r, Distance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}
