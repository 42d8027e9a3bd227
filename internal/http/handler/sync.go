package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"reminders/internal/auth"
	"reminders/internal/jobs"
	"reminders/internal/reminder"
	"reminders/internal/syncer"
)

type SyncHandler struct {
	Reconciler *syncer.Reconciler
	Reminders  *reminder.Store
	Jobs       *jobs.Repo
	Log        *slog.Logger
}

func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncer.Request
	if err := decode(r, &req); err != nil {
		Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ClientID == "" {
		req.ClientID, _ = auth.ClientIDFromContext(r.Context())
	}

	res, err := h.Reconciler.Reconcile(r.Context(), req)
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	h.reschedule(r, req.Changes)
	JSON(w, res, http.StatusOK)
}

// reschedule brings snooze wake-ups in line with whatever the batch left
// behind. Failures only delay a wake-up, so they are logged.
func (h *SyncHandler) reschedule(r *http.Request, changes []syncer.Change) {
	ctx := r.Context()
	for _, ch := range changes {
		if ch.ID == "" {
			continue
		}
		if ch.Action == syncer.ActionDelete {
			if err := h.Jobs.CancelSnoozeWake(ctx, ch.ID); err != nil {
				h.Log.Warn("cancel wake-up after sync", "id", ch.ID, "error", err)
			}
			continue
		}
		if ch.Data == nil || (ch.Data.Status == nil && ch.Data.SnoozedUntil == nil) {
			continue
		}
		rem, err := h.Reminders.Get(ctx, ch.ID)
		if errors.Is(err, reminder.ErrNotFound) {
			continue
		}
		if err == nil {
			err = h.Jobs.Schedule(ctx, rem)
		}
		if err != nil {
			h.Log.Warn("schedule wake-up after sync", "id", ch.ID, "error", err)
		}
	}
}
