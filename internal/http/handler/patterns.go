package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"reminders/internal/recurrence"
	"reminders/internal/reminder"
)

type PatternHandler struct {
	Service *recurrence.Service
	Log     *slog.Logger
}

type expandReq struct {
	ReminderID  string `json:"reminder_id"`
	HorizonDays int    `json:"horizon_days"`
}

type expandResp struct {
	PatternID string              `json:"pattern_id"`
	Created   int                 `json:"created"`
	Reminders []reminder.Reminder `json:"reminders"`
}

func (h *PatternHandler) Create(w http.ResponseWriter, r *http.Request) {
	var pp recurrence.PatternPatch
	if err := decode(r, &pp); err != nil {
		Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := pp.Build(h.Service.Expander.Clock.Now())
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	if err := h.Service.Patterns.Insert(r.Context(), &p); err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	JSON(w, p, http.StatusCreated)
}

func (h *PatternHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.Patterns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	JSON(w, p, http.StatusOK)
}

func (h *PatternHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var pp recurrence.PatternPatch
	if err := decode(r, &pp); err != nil {
		Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := h.Service.Patterns.Update(r.Context(), chi.URLParam(r, "id"), pp)
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	JSON(w, p, http.StatusOK)
}

// Delete removes the pattern and reports how many reminders were unlinked
// from it in X-Reminders-Unlinked.
func (h *PatternHandler) Delete(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.Patterns.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	w.Header().Set("X-Reminders-Unlinked", strconv.FormatInt(n, 10))
	w.WriteHeader(http.StatusNoContent)
}

func (h *PatternHandler) Expand(w http.ResponseWriter, r *http.Request) {
	var req expandReq
	if err := decode(r, &req); err != nil {
		Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ReminderID == "" {
		Error(w, "reminder_id is required", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	rs, err := h.Service.ExpandExisting(r.Context(), id, req.ReminderID, req.HorizonDays)
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	if rs == nil {
		rs = []reminder.Reminder{}
	}
	JSON(w, expandResp{PatternID: id, Created: len(rs), Reminders: rs}, http.StatusCreated)
}
