package session

import (
	"errors"
	"time"

	"github.com/deskmind/orchestrator/internal/workflow"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Session is the durable per-conversation record: identity plus ordered
// message history. Workflow checkpoints are stored separately so an
// interrupted turn never corrupts the conversation record.
type Session struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	ExpiresAt time.Time          `json:"expires_at"`
	History   []workflow.Message `json:"history"`
}

// IsExpired checks if the session has passed its expiration time.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
