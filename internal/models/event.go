package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventSessionOpened  = "session_opened"
	EventSessionClosed  = "session_closed"
	EventTerminalOpened = "terminal_opened"
	EventTerminalClosed = "terminal_closed"
)

type Event struct {
	ID        int64           `json:"id" example:"123"`
	SessionID uuid.UUID       `json:"session_id"`
	Host      string          `json:"host" example:"files.example.com"`
	Username  string          `json:"username" example:"alice"`
	EventType string          `json:"event_type" example:"session_opened"`
	EventTime time.Time       `json:"event_time"`
	Payload   json.RawMessage `json:"payload" swaggertype:"object"`
}
