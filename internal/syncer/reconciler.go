package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmhodges/clock"
	"gorm.io/gorm"

	"reminders/internal/reminder"
)

// errSkipped marks a change that was well-formed enough to read but had
// nothing to write (missing data, delete of an unknown id).
var errSkipped = errors.New("change skipped")

// Reconciler merges client changes into the reminder table with
// last-write-wins on updated_at and computes the server delta.
type Reconciler struct {
	DB    *gorm.DB
	Clock clock.Clock
	Log   *slog.Logger
}

func NewReconciler(db *gorm.DB, clk clock.Clock, log *slog.Logger) *Reconciler {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{DB: db, Clock: clk, Log: log}
}

// Reconcile applies req.Changes in order, one transaction per change, then
// returns every reminder changed after req.LastSync that was not part of
// the batch. A failing change is logged and skipped; store failures while
// building the delta abort the call.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (Result, error) {
	now := r.Clock.Now().UTC()
	log := r.Log.With("client_id", req.ClientID)

	res := Result{
		Conflicts:     []Conflict{},
		ServerChanges: []ServerChange{},
		LastSync:      now,
	}

	seen := make([]string, 0, len(req.Changes))
	for i, ch := range req.Changes {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if ch.ID != "" {
			seen = append(seen, ch.ID)
		}

		conflict, err := r.applyOne(ctx, ch, now)
		if conflict != nil {
			res.Conflicts = append(res.Conflicts, *conflict)
		}
		switch {
		case err == nil:
			res.AppliedCount++
		case errors.Is(err, errSkipped):
			log.Debug("sync change skipped", "index", i, "id", ch.ID, "action", ch.Action, "reason", err)
		default:
			log.Warn("sync change failed", "index", i, "id", ch.ID, "action", ch.Action, "err", err)
		}
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := reminder.NewStore(tx, r.Clock)
		changed, err := store.ChangedSince(ctx, req.LastSync, seen)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(changed))
		for _, rem := range changed {
			action := ActionUpdate
			if req.LastSync == nil || rem.CreatedAt.After(*req.LastSync) {
				action = ActionCreate
			}
			rem.SyncedAt = &now
			res.ServerChanges = append(res.ServerChanges, ServerChange{
				ID:        rem.ID,
				Action:    action,
				Data:      rem,
				UpdatedAt: rem.UpdatedAt,
			})
			ids = append(ids, rem.ID)
		}
		return store.MarkSynced(ctx, ids, now)
	})
	if err != nil {
		return Result{}, fmt.Errorf("server delta: %w", err)
	}

	log.Info("sync reconciled",
		"changes", len(req.Changes),
		"applied", res.AppliedCount,
		"conflicts", len(res.Conflicts),
		"server_changes", len(res.ServerChanges),
	)
	return res, nil
}

// applyOne runs the conflict check and the write for a single change in
// its own transaction. The returned conflict is only non-nil when the
// transaction committed.
func (r *Reconciler) applyOne(ctx context.Context, ch Change, now time.Time) (*Conflict, error) {
	if ch.ID == "" {
		return nil, fmt.Errorf("%w: change without id", reminder.ErrValidation)
	}
	if !ch.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", reminder.ErrValidation, ch.Action)
	}
	if ch.Action != ActionDelete && ch.Data == nil {
		return nil, fmt.Errorf("%w: %s without data", errSkipped, ch.Action)
	}
	if ch.Action != ActionDelete && ch.UpdatedAt.IsZero() {
		return nil, fmt.Errorf("%w: %s without updated_at", reminder.ErrValidation, ch.Action)
	}

	var conflict *Conflict
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := reminder.NewStore(tx, r.Clock)

		cur, err := store.GetForUpdate(ctx, ch.ID)
		exists := err == nil
		if err != nil && !errors.Is(err, reminder.ErrNotFound) {
			return err
		}

		if ch.Action == ActionDelete {
			if !exists {
				return fmt.Errorf("%w: delete of unknown id", errSkipped)
			}
			return store.Delete(ctx, ch.ID)
		}

		if !exists {
			rem, err := ch.Data.Build(ch.ID, now)
			if err != nil {
				return err
			}
			if err := store.Insert(ctx, &rem); err != nil {
				return err
			}
			return store.MarkSynced(ctx, []string{ch.ID}, now)
		}

		// A create for an id the server already has is treated as an
		// update so retried pushes stay idempotent.
		c := Conflict{
			ID:              ch.ID,
			ClientUpdatedAt: ch.UpdatedAt.UTC(),
			ServerUpdatedAt: cur.UpdatedAt.UTC(),
			Resolution:      ClientWins,
		}
		if cur.UpdatedAt.After(ch.UpdatedAt) {
			c.Resolution = ServerWins
			conflict = &c
			return nil
		}
		if _, err := store.Update(ctx, ch.ID, *ch.Data); err != nil {
			return err
		}
		if err := store.MarkSynced(ctx, []string{ch.ID}, now); err != nil {
			return err
		}
		conflict = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if conflict != nil && conflict.Resolution == ServerWins {
		return conflict, fmt.Errorf("%w: server copy is newer", errSkipped)
	}
	return conflict, nil
}
