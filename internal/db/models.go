package db

import (
	"database/sql"
	"time"
)

// SessionRecord is one archived conversation session.
type SessionRecord struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
	Summary   sql.NullString `db:"summary"`
}

// MessageRecord is one archived conversation message.
type MessageRecord struct {
	ID        int64     `db:"id"`
	SessionID string    `db:"session_id"`
	UserID    string    `db:"user_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// TurnRecord is one archived workflow turn outcome.
type TurnRecord struct {
	ID         int64     `db:"id"`
	SessionID  string    `db:"session_id"`
	UserID     string    `db:"user_id"`
	Utterance  string    `db:"utterance"`
	Response   string    `db:"response"`
	FinalStage string    `db:"final_stage"`
	NeedsHuman bool      `db:"needs_human"`
	Error      string    `db:"error"`
	DurationMS int64     `db:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"`
}
