// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/avilov/tutorlab/internal/domain"
)

// DefaultLogQueryLimit caps audit log queries when no limit is supplied.
const DefaultLogQueryLimit = 100

// LogFilter narrows an audit log query. All supplied fields are combined
// as an AND-conjunction; zero values are ignored.
type LogFilter struct {
	UserID    string
	SessionID string
	EventType string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// AssistantWrite is one agent's reply to persist as part of an exchange.
type AssistantWrite struct {
	ConversationID int64
	AgentID        int64
	Content        string
	Model          string
	ResponseTimeMs int64
}

// ExchangeRecord describes one full logical turn: the user's message plus
// every responding agent's reply and the matching audit rows.
type ExchangeRecord struct {
	UserID             string
	SessionID          string
	UserConversationID int64
	UserContent        string
	Device             domain.DeviceInfo
	Assistants         []AssistantWrite
}

// ExchangeResult reports the rows written for one exchange.
// AssistantMessages is parallel to ExchangeRecord.Assistants.
type ExchangeResult struct {
	TurnNumber        int64
	UserMessage       *domain.Message
	AssistantMessages []*domain.Message
}

// Repository defines the interface for persisting tutoring data.
type Repository interface {
	// GetSession retrieves the tutor session for a user.
	// Returns (nil, nil) when no session exists.
	GetSession(ctx context.Context, userID string) (*domain.TutorSession, error)

	// CreateSession inserts a new tutor session row.
	CreateSession(ctx context.Context, session *domain.TutorSession) error

	// UpdateSessionMode persists a new mode and returns the updated session.
	UpdateSessionMode(ctx context.Context, userID string, mode domain.SessionMode) (*domain.TutorSession, error)

	// UpdateSessionAgent persists the active agent pointer and returns the
	// updated session.
	UpdateSessionAgent(ctx context.Context, userID string, agentID int64) (*domain.TutorSession, error)

	// ListAgents returns agents, optionally restricted to active ones.
	ListAgents(ctx context.Context, activeOnly bool) ([]*domain.Agent, error)

	// GetAgent retrieves one agent. Returns (nil, nil) when absent.
	GetAgent(ctx context.Context, id int64) (*domain.Agent, error)

	// GetOrCreateConversation returns the conversation for a (user, agent)
	// pair, creating an empty one on first access.
	GetOrCreateConversation(ctx context.Context, userID string, agentID int64) (*domain.Conversation, error)

	// ListConversations returns all conversations for a user, most
	// recently active first.
	ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error)

	// AppendMessage appends a message at the end of a conversation and
	// bumps the conversation's last-activity timestamp.
	AppendMessage(ctx context.Context, conversationID int64, role domain.MessageRole, content, model string) (*domain.Message, error)

	// RecentMessages returns at most window most-recent messages, oldest of
	// that subset first. The window bounds provider context only; stored
	// history is unaffected.
	RecentMessages(ctx context.Context, conversationID int64, window int) ([]*domain.Message, error)

	// ClearConversation deletes all messages for a conversation and
	// returns the number deleted. The conversation row is retained.
	ClearConversation(ctx context.Context, conversationID int64) (int64, error)

	// ActiveProviderConfig returns the active config row for a service.
	// Returns (nil, nil) when no active row exists.
	ActiveProviderConfig(ctx context.Context, serviceName string) (*domain.ProviderConfig, error)

	// RecordExchange writes one full turn (messages plus audit rows, turn
	// number computed inside) in a single transaction.
	RecordExchange(ctx context.Context, rec *ExchangeRecord) (*ExchangeResult, error)

	// InsertInteractionLog appends one audit row with the next turn number
	// for its session.
	InsertInteractionLog(ctx context.Context, entry *domain.InteractionLog) error

	// QueryInteractionLogs returns audit rows matching the filter, newest
	// first, capped at the filter limit (DefaultLogQueryLimit when unset).
	QueryInteractionLogs(ctx context.Context, f LogFilter) ([]*domain.InteractionLog, error)

	// InteractionStats aggregates the audit log over an optional window.
	InteractionStats(ctx context.Context, start, end *time.Time) (*domain.InteractionStats, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
