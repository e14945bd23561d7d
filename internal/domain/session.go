// Package domain contains core domain types for the tutoring server.
package domain

import (
	"time"
)

// SessionMode controls how an unaddressed message is routed to an agent.
type SessionMode string

const (
	// ModeManual means the learner (or the session's active agent pointer)
	// designates exactly which agent receives a message.
	ModeManual SessionMode = "manual"
	// ModeRouter delegates agent selection to a pluggable selection strategy.
	ModeRouter SessionMode = "router"
)

// Valid reports whether the mode is one of the supported values.
func (m SessionMode) Valid() bool {
	return m == ModeManual || m == ModeRouter
}

// TutorSession holds per-user tutoring state. There is exactly one
// session per user; it is created lazily on first access and never deleted.
type TutorSession struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	Mode          SessionMode `json:"mode"`
	ActiveAgentID *int64      `json:"active_agent_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}
