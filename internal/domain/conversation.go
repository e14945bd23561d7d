package domain

import (
	"time"
)

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	// RoleUser marks a learner-authored message.
	RoleUser MessageRole = "user"
	// RoleAssistant marks an agent-authored message.
	RoleAssistant MessageRole = "assistant"
)

// Conversation is the message history between one user and one agent.
// The (user, agent) pair is unique; clearing deletes messages but keeps
// the conversation row.
type Conversation struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	AgentID        int64     `json:"agent_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Message is a single immutable conversation entry. Ordering within a
// conversation is total: created_at ascending, id as tiebreak.
type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	Model          string      `json:"model,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
