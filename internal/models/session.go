package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionInfo is the client-facing view of a live session. It never carries
// the token or credentials.
type SessionInfo struct {
	ID         uuid.UUID `json:"id" example:"a1b2c3d4-e5f6-7890-1234-567890abcdef"`
	Host       string    `json:"host" example:"files.example.com"`
	Port       int       `json:"port" example:"22"`
	Username   string    `json:"username" example:"alice"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	Terminals  int       `json:"terminals" example:"1"`
}
