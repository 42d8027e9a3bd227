package handler

import (
	"net/http"
	"time"

	"github.com/jmhodges/clock"
	"gorm.io/gorm"

	"reminders/internal/db"
)

type HealthHandler struct {
	DB      *gorm.DB
	Clock   clock.Clock
	Version string
}

type healthResp struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

// Health always answers 200; a dead database shows up in the body.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResp{
		Status:    "ok",
		Version:   h.Version,
		Database:  "connected",
		Timestamp: h.Clock.Now().UTC(),
	}
	if err := db.Ping(h.DB); err != nil {
		resp.Status = "error"
		resp.Database = "disconnected"
	}
	JSON(w, resp, http.StatusOK)
}
