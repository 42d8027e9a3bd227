package syncer

import (
	"time"

	"reminders/internal/reminder"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

type Resolution string

const (
	ServerWins Resolution = "server_wins"
	ClientWins Resolution = "client_wins"
)

// Change is one client-side edit. Data is nil for deletes.
type Change struct {
	ID        string          `json:"id"`
	Action    Action          `json:"action"`
	Data      *reminder.Patch `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Request struct {
	ClientID string     `json:"client_id"`
	LastSync *time.Time `json:"last_sync"`
	Changes  []Change   `json:"changes"`
}

type Conflict struct {
	ID              string     `json:"id"`
	ClientUpdatedAt time.Time  `json:"client_updated_at"`
	ServerUpdatedAt time.Time  `json:"server_updated_at"`
	Resolution      Resolution `json:"resolution"`
}

// ServerChange is a reminder the client has not seen yet.
type ServerChange struct {
	ID        string            `json:"id"`
	Action    Action            `json:"action"`
	Data      reminder.Reminder `json:"data"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type Result struct {
	AppliedCount  int            `json:"applied_count"`
	Conflicts     []Conflict     `json:"conflicts"`
	ServerChanges []ServerChange `json:"server_changes"`
	LastSync      time.Time      `json:"last_sync"`
}
