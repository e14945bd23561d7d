package domain

import (
	"time"
)

// Interaction log event types.
const (
	EventUserMessage         = "user_message"
	EventAssistantMessage    = "assistant_message"
	EventConversationCleared = "conversation_cleared"
)

// InteractionLog is one append-only audit row. Every logical turn writes
// one user_message row plus one assistant_message row per responding
// agent, all sharing the same session ID and turn number.
type InteractionLog struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	SessionID      string    `json:"session_id"`
	TurnNumber     int64     `json:"turn_number"`
	EventType      string    `json:"event_type"`
	Content        string    `json:"content"`
	Model          string    `json:"model,omitempty"`
	ResponseTimeMs int64     `json:"response_time_ms,omitempty"`
	DeviceType     string    `json:"device_type,omitempty"`
	BrowserName    string    `json:"browser_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// InteractionStats aggregates the audit log over an optional date window.
type InteractionStats struct {
	TotalSessions       int64   `json:"totalSessions"`
	TotalMessages       int64   `json:"totalMessages"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	ActiveUsers         int64   `json:"activeUsers"`
}
