package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"reminders/internal/recurrence"
	"reminders/internal/reminder"
	"reminders/internal/voice"
)

func JSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func Error(w http.ResponseWriter, detail string, status int) {
	JSON(w, map[string]string{"detail": detail}, status)
}

// WriteErr maps domain errors to status codes. Anything unrecognized is
// logged and reported as a bare 500.
func WriteErr(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, reminder.ErrValidation):
		Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, reminder.ErrNotFound):
		Error(w, "reminder not found", http.StatusNotFound)
	case errors.Is(err, reminder.ErrDuplicate):
		Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, recurrence.ErrNotFound):
		Error(w, "recurrence pattern not found", http.StatusNotFound)
	case errors.Is(err, voice.ErrUnavailable):
		Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		if log != nil {
			log.Error("request failed", "error", err)
		}
		Error(w, "internal error", http.StatusInternalServerError)
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid json")
	}
	return nil
}
