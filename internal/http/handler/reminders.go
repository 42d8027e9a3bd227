package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jmhodges/clock"

	"reminders/internal/jobs"
	"reminders/internal/recurrence"
	"reminders/internal/reminder"
)

const defaultNearRadius = 1000.0

type ReminderHandler struct {
	Reminders  *reminder.Store
	Recurrence *recurrence.Service
	Jobs       *jobs.Repo
	Clock      clock.Clock
	Log        *slog.Logger
}

type createReminderReq struct {
	reminder.Patch
	ID                *string                  `json:"id,omitempty"`
	RecurrencePattern *recurrence.PatternPatch `json:"recurrence_pattern,omitempty"`
	HorizonDays       int                      `json:"horizon_days,omitempty"`
}

type pagination struct {
	Total    int64 `json:"total"`
	Limit    int   `json:"limit"`
	Offset   int   `json:"offset"`
	Returned int   `json:"returned"`
}

type listResp struct {
	Data       []reminder.Reminder `json:"data"`
	Pagination pagination          `json:"pagination"`
}

func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReminderReq
	if err := decode(r, &req); err != nil {
		Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	if req.RecurrencePattern != nil {
		_, instances, err := h.Recurrence.CreateWithInstances(ctx, req.Patch, *req.RecurrencePattern, req.HorizonDays)
		if err != nil {
			WriteErr(w, h.Log, err)
			return
		}
		for _, inst := range instances {
			if inst.Status == reminder.StatusSnoozed {
				if err := h.Jobs.Schedule(ctx, inst); err != nil {
					WriteErr(w, h.Log, err)
					return
				}
			}
		}
		w.Header().Set("X-Instances-Created", strconv.Itoa(len(instances)))
		JSON(w, instances[0], http.StatusCreated)
		return
	}

	var id string
	if req.ID != nil {
		id = *req.ID
	}
	rem, err := req.Patch.Build(id, h.Clock.Now())
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	if err := h.Reminders.Insert(ctx, &rem); err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	if err := h.Jobs.Schedule(ctx, rem); err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	JSON(w, rem, http.StatusCreated)
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := reminder.Filter{Limit: reminder.DefaultLimit}

	if v := q.Get("status"); v != "" {
		st := reminder.Status(v)
		if !st.Valid() {
			Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		f.Status = &st
	}
	if v := q.Get("priority"); v != "" {
		pr := reminder.Priority(v)
		if !pr.Valid() {
			Error(w, "invalid priority", http.StatusBadRequest)
			return
		}
		f.Priority = &pr
	}
	if v := q.Get("category"); v != "" {
		f.Category = &v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > reminder.MaxLimit {
			Error(w, fmt.Sprintf("limit must be between 1 and %d", reminder.MaxLimit), http.StatusBadRequest)
			return
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			Error(w, "offset must be a non-negative integer", http.StatusBadRequest)
			return
		}
		f.Offset = n
	}

	ctx := r.Context()
	rs, err := h.Reminders.List(ctx, f)
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	total, err := h.Reminders.Count(ctx, f)
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	if rs == nil {
		rs = []reminder.Reminder{}
	}

	JSON(w, listResp{
		Data: rs,
		Pagination: pagination{
			Total:    total,
			Limit:    f.Limit,
			Offset:   f.Offset,
			Returned: len(rs),
		},
	}, http.StatusOK)
}

func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	rem, err := h.Reminders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	JSON(w, rem, http.StatusOK)
}

func (h *ReminderHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var p reminder.Patch
	if err := decode(r, &p); err != nil {
		Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	rem, err := h.Reminders.Update(ctx, chi.URLParam(r, "id"), p)
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	if err := h.Jobs.Schedule(ctx, rem); err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	JSON(w, rem, http.StatusOK)
}

func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if err := h.Reminders.Delete(ctx, id); err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	if err := h.Jobs.CancelSnoozeWake(ctx, id); err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReminderHandler) Near(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		Error(w, "lat must be a number between -90 and 90", http.StatusBadRequest)
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil || lng < -180 || lng > 180 {
		Error(w, "lng must be a number between -180 and 180", http.StatusBadRequest)
		return
	}
	radius := defaultNearRadius
	if v := q.Get("radius"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 {
			Error(w, "radius must be a positive number", http.StatusBadRequest)
			return
		}
	}

	rs, err := h.Reminders.Near(r.Context(), lat, lng, radius)
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	if rs == nil {
		rs = []reminder.Located{}
	}
	JSON(w, rs, http.StatusOK)
}
