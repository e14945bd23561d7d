package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avilov/tutorlab/internal/domain"
	"github.com/avilov/tutorlab/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db         *sql.DB
	exchangeMu sync.Mutex // serializes turn transactions to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := store.seedAgents(); err != nil {
		return nil, fmt.Errorf("seed agents: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS tutor_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		mode TEXT NOT NULL DEFAULT 'manual',
		active_agent_id INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		system_prompt TEXT NOT NULL,
		welcome_message TEXT NOT NULL DEFAULT '',
		personality TEXT NOT NULL DEFAULT '',
		temperature REAL,
		model_preference TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		last_activity_at INTEGER NOT NULL,
		UNIQUE(user_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);

	CREATE TABLE IF NOT EXISTS provider_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		service_name TEXT NOT NULL,
		api_key TEXT NOT NULL,
		default_model TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS interaction_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		content TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		response_time_ms INTEGER,
		device_type TEXT NOT NULL DEFAULT '',
		browser_name TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interaction_logs_session ON interaction_logs(session_id, turn_number);
	CREATE INDEX IF NOT EXISTS idx_interaction_logs_user ON interaction_logs(user_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// seedAgents inserts the stock tutor personas when the agents table is
// empty so a fresh install has someone to talk to.
func (s *SQLiteStore) seedAgents() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM agents`).Scan(&count); err != nil {
		return fmt.Errorf("count agents: %w", err)
	}
	if count > 0 {
		return nil
	}

	seeds := []struct {
		name, display, prompt, welcome, personality string
	}{
		{
			name:        "socrates",
			display:     "Socrates",
			prompt:      "You are a patient tutor who teaches through guided questions. Never give the full answer outright; lead the learner to discover it.",
			welcome:     "Hello! Ask me anything and we will reason through it together.",
			personality: "inquisitive, patient, answers with questions",
		},
		{
			name:        "coach",
			display:     "Study Coach",
			prompt:      "You are an encouraging study coach. Give concrete, step-by-step explanations with short examples.",
			welcome:     "Hi! Tell me what you are working on and we will break it down.",
			personality: "upbeat, structured, example-driven",
		},
		{
			name:        "examiner",
			display:     "Examiner",
			prompt:      "You are a strict examiner. Answer precisely and point out gaps in the learner's reasoning.",
			welcome:     "State your question. Be precise.",
			personality: "terse, rigorous, direct",
		},
	}

	for _, a := range seeds {
		_, err := s.db.Exec(
			`INSERT INTO agents (name, display_name, system_prompt, welcome_message, personality, is_active) VALUES (?, ?, ?, ?, ?, 1)`,
			a.name, a.display, a.prompt, a.welcome, a.personality,
		)
		if err != nil {
			return fmt.Errorf("insert seed agent %s: %w", a.name, err)
		}
	}
	slog.Info("Seeded default agents", "count", len(seeds))
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetSession retrieves the tutor session for a user.
func (s *SQLiteStore) GetSession(ctx context.Context, userID string) (*domain.TutorSession, error) {
	query := `
		SELECT id, user_id, mode, active_agent_id, created_at, updated_at
		FROM tutor_sessions WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*domain.TutorSession, error) {
	var session domain.TutorSession
	var agentID sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&session.ID, &session.UserID, &session.Mode, &agentID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	if agentID.Valid {
		session.ActiveAgentID = &agentID.Int64
	}
	session.CreatedAt = time.UnixMilli(createdAt)
	session.UpdatedAt = time.UnixMilli(updatedAt)

	return &session, nil
}

// CreateSession inserts a new tutor session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.TutorSession) error {
	query := `
		INSERT INTO tutor_sessions (id, user_id, mode, active_agent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	var agentID interface{}
	if session.ActiveAgentID != nil {
		agentID = *session.ActiveAgentID
	}

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.UserID, string(session.Mode), agentID,
		session.CreatedAt.UnixMilli(), session.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSessionMode persists a new mode and returns the updated session.
func (s *SQLiteStore) UpdateSessionMode(ctx context.Context, userID string, mode domain.SessionMode) (*domain.TutorSession, error) {
	query := `UPDATE tutor_sessions SET mode = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, string(mode), time.Now().UnixMilli(), userID)
	if err != nil {
		return nil, fmt.Errorf("update session mode: %w", err)
	}
	if err := requireRow(result, "session for user "+userID); err != nil {
		return nil, err
	}
	return s.GetSession(ctx, userID)
}

// UpdateSessionAgent persists the active agent pointer and returns the
// updated session.
func (s *SQLiteStore) UpdateSessionAgent(ctx context.Context, userID string, agentID int64) (*domain.TutorSession, error) {
	query := `UPDATE tutor_sessions SET active_agent_id = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, agentID, time.Now().UnixMilli(), userID)
	if err != nil {
		return nil, fmt.Errorf("update session agent: %w", err)
	}
	if err := requireRow(result, "session for user "+userID); err != nil {
		return nil, err
	}
	return s.GetSession(ctx, userID)
}

func requireRow(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found", what)
	}
	return nil
}

// ListAgents returns agents, optionally restricted to active ones.
func (s *SQLiteStore) ListAgents(ctx context.Context, activeOnly bool) ([]*domain.Agent, error) {
	query := `
		SELECT id, name, display_name, system_prompt, welcome_message,
		       personality, temperature, model_preference, is_active
		FROM agents`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer closeRows(rows, "agents")

	var agents []*domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return agents, nil
}

// GetAgent retrieves one agent.
func (s *SQLiteStore) GetAgent(ctx context.Context, id int64) (*domain.Agent, error) {
	query := `
		SELECT id, name, display_name, system_prompt, welcome_message,
		       personality, temperature, model_preference, is_active
		FROM agents WHERE id = ?`

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query agent: %w", err)
	}
	defer closeRows(rows, "agent")

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate agent: %w", err)
		}
		return nil, nil
	}
	return scanAgent(rows)
}

func scanAgent(rows *sql.Rows) (*domain.Agent, error) {
	var agent domain.Agent
	var temperature sql.NullFloat64

	err := rows.Scan(
		&agent.ID, &agent.Name, &agent.DisplayName, &agent.SystemPrompt,
		&agent.WelcomeMessage, &agent.Personality, &temperature,
		&agent.ModelPreference, &agent.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("scan agent row: %w", err)
	}
	if temperature.Valid {
		agent.Temperature = &temperature.Float64
	}
	return &agent, nil
}

// GetOrCreateConversation returns the conversation for a (user, agent)
// pair, creating an empty one on first access.
func (s *SQLiteStore) GetOrCreateConversation(ctx context.Context, userID string, agentID int64) (*domain.Conversation, error) {
	now := time.Now().UnixMilli()
	// The UNIQUE(user_id, agent_id) constraint makes the insert a no-op
	// when the conversation already exists.
	insert := `
		INSERT INTO conversations (user_id, agent_id, created_at, last_activity_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, agent_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, insert, userID, agentID, now, now); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	query := `
		SELECT id, user_id, agent_id, created_at, last_activity_at
		FROM conversations WHERE user_id = ? AND agent_id = ?`
	row := s.db.QueryRowContext(ctx, query, userID, agentID)

	var conv domain.Conversation
	var createdAt, lastActivity int64
	if err := row.Scan(&conv.ID, &conv.UserID, &conv.AgentID, &createdAt, &lastActivity); err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}
	conv.CreatedAt = time.UnixMilli(createdAt)
	conv.LastActivityAt = time.UnixMilli(lastActivity)
	return &conv, nil
}

// ListConversations returns all conversations for a user.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	query := `
		SELECT id, user_id, agent_id, created_at, last_activity_at
		FROM conversations WHERE user_id = ? ORDER BY last_activity_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer closeRows(rows, "conversations")

	var convs []*domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		var createdAt, lastActivity int64
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.AgentID, &createdAt, &lastActivity); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		conv.CreatedAt = time.UnixMilli(createdAt)
		conv.LastActivityAt = time.UnixMilli(lastActivity)
		convs = append(convs, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return convs, nil
}

// AppendMessage appends a message at the end of a conversation.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID int64, role domain.MessageRole, content, model string) (*domain.Message, error) {
	now := time.Now().UnixMilli()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, model, created_at) VALUES (?, ?, ?, ?, ?)`,
		conversationID, string(role), content, model, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message insert id: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET last_activity_at = ? WHERE id = ?`, now, conversationID,
	); err != nil {
		return nil, fmt.Errorf("update conversation activity: %w", err)
	}

	return &domain.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Model:          model,
		CreatedAt:      time.UnixMilli(now),
	}, nil
}

// RecentMessages returns at most window most-recent messages, oldest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, conversationID int64, window int) ([]*domain.Message, error) {
	if window <= 0 {
		window = 20
	}
	// Select the newest window rows, then flip them back into
	// chronological order for prompt building.
	query := `
		SELECT id, conversation_id, role, content, model, created_at FROM (
			SELECT id, conversation_id, role, content, model, created_at
			FROM messages WHERE conversation_id = ?
			ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, conversationID, window)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer closeRows(rows, "recent messages")

	var msgs []*domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent messages: %w", err)
	}
	return msgs, nil
}

func scanMessage(rows *sql.Rows) (*domain.Message, error) {
	var msg domain.Message
	var createdAt int64
	if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Model, &createdAt); err != nil {
		return nil, fmt.Errorf("scan message row: %w", err)
	}
	msg.CreatedAt = time.UnixMilli(createdAt)
	return &msg, nil
}

// ClearConversation deletes all messages for a conversation.
func (s *SQLiteStore) ClearConversation(ctx context.Context, conversationID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("clear conversation: %w", err)
	}
	return result.RowsAffected()
}

// ActiveProviderConfig returns the active config row for a service.
func (s *SQLiteStore) ActiveProviderConfig(ctx context.Context, serviceName string) (*domain.ProviderConfig, error) {
	query := `
		SELECT id, service_name, api_key, default_model, is_active
		FROM provider_configs WHERE service_name = ? AND is_active = 1
		ORDER BY id DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, serviceName)

	var cfg domain.ProviderConfig
	err := row.Scan(&cfg.ID, &cfg.ServiceName, &cfg.APIKey, &cfg.DefaultModel, &cfg.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan provider config: %w", err)
	}
	return &cfg, nil
}

// RecordExchange writes one full turn in a single transaction: the user
// message, every assistant reply, and one audit row per message, all
// sharing turn number max(session)+1. Retries on SQLite lock conflicts.
func (s *SQLiteStore) RecordExchange(ctx context.Context, rec *ExchangeRecord) (*ExchangeResult, error) {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		result, err := s.recordExchangeOnce(ctx, rec)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("RecordExchange hit SQLITE_BUSY, retrying",
				"session_id", rec.SessionID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	return nil, fmt.Errorf("record exchange for session %s: %w", rec.SessionID, lastErr)
}

func (s *SQLiteStore) recordExchangeOnce(ctx context.Context, rec *ExchangeRecord) (*ExchangeResult, error) {
	s.exchangeMu.Lock()
	defer s.exchangeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			slog.Warn("failed to roll back exchange transaction", "error", rbErr)
		}
	}()

	var maxTurn sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(turn_number) FROM interaction_logs WHERE session_id = ?`, rec.SessionID,
	).Scan(&maxTurn)
	if err != nil {
		return nil, fmt.Errorf("read max turn number: %w", err)
	}
	turn := maxTurn.Int64 + 1

	now := time.Now().UnixMilli()

	userMsg, err := insertMessageTx(ctx, tx, rec.UserConversationID, domain.RoleUser, rec.UserContent, "", now)
	if err != nil {
		return nil, err
	}

	result := &ExchangeResult{TurnNumber: turn, UserMessage: userMsg}

	if err := insertLogTx(ctx, tx, &domain.InteractionLog{
		UserID:      rec.UserID,
		SessionID:   rec.SessionID,
		TurnNumber:  turn,
		EventType:   domain.EventUserMessage,
		Content:     rec.UserContent,
		DeviceType:  string(rec.Device.DeviceType),
		BrowserName: rec.Device.BrowserName,
	}, now); err != nil {
		return nil, err
	}

	for _, a := range rec.Assistants {
		msg, err := insertMessageTx(ctx, tx, a.ConversationID, domain.RoleAssistant, a.Content, a.Model, now)
		if err != nil {
			return nil, err
		}
		result.AssistantMessages = append(result.AssistantMessages, msg)

		if err := insertLogTx(ctx, tx, &domain.InteractionLog{
			UserID:         rec.UserID,
			SessionID:      rec.SessionID,
			TurnNumber:     turn,
			EventType:      domain.EventAssistantMessage,
			Content:        a.Content,
			Model:          a.Model,
			ResponseTimeMs: a.ResponseTimeMs,
			DeviceType:     string(rec.Device.DeviceType),
			BrowserName:    rec.Device.BrowserName,
		}, now); err != nil {
			return nil, err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET last_activity_at = ? WHERE id = ?`, now, a.ConversationID,
		); err != nil {
			return nil, fmt.Errorf("update conversation activity: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_activity_at = ? WHERE id = ?`, now, rec.UserConversationID,
	); err != nil {
		return nil, fmt.Errorf("update conversation activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit exchange: %w", err)
	}
	return result, nil
}

func insertMessageTx(ctx context.Context, tx *sql.Tx, conversationID int64, role domain.MessageRole, content, model string, now int64) (*domain.Message, error) {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, model, created_at) VALUES (?, ?, ?, ?, ?)`,
		conversationID, string(role), content, model, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert %s message: %w", role, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message insert id: %w", err)
	}
	return &domain.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Model:          model,
		CreatedAt:      time.UnixMilli(now),
	}, nil
}

func insertLogTx(ctx context.Context, tx *sql.Tx, entry *domain.InteractionLog, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO interaction_logs (
			user_id, session_id, turn_number, event_type, content,
			model, response_time_ms, device_type, browser_name, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.SessionID, entry.TurnNumber, entry.EventType, entry.Content,
		entry.Model, entry.ResponseTimeMs, entry.DeviceType, entry.BrowserName, now,
	)
	if err != nil {
		return fmt.Errorf("insert interaction log: %w", err)
	}
	return nil
}

// InsertInteractionLog appends one audit row with the next turn number
// for its session.
func (s *SQLiteStore) InsertInteractionLog(ctx context.Context, entry *domain.InteractionLog) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interaction_logs (
			user_id, session_id, turn_number, event_type, content,
			model, response_time_ms, device_type, browser_name, created_at
		) VALUES (?, ?,
			(SELECT COALESCE(MAX(turn_number), 0) + 1 FROM interaction_logs WHERE session_id = ?),
			?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.SessionID, entry.SessionID,
		entry.EventType, entry.Content, entry.Model, entry.ResponseTimeMs,
		entry.DeviceType, entry.BrowserName, now,
	)
	if err != nil {
		return fmt.Errorf("insert interaction log: %w", err)
	}
	return nil
}

// QueryInteractionLogs returns audit rows matching the filter, newest first.
func (s *SQLiteStore) QueryInteractionLogs(ctx context.Context, f LogFilter) ([]*domain.InteractionLog, error) {
	query := `
		SELECT id, user_id, session_id, turn_number, event_type, content,
		       model, COALESCE(response_time_ms, 0), device_type, browser_name, created_at
		FROM interaction_logs`

	var conds []string
	var args []interface{}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.EventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, f.EventType)
	}
	if f.StartDate != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.StartDate.UnixMilli())
	}
	if f.EndDate != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.EndDate.UnixMilli())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLogQueryLimit
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interaction logs: %w", err)
	}
	defer closeRows(rows, "interaction logs")

	var logs []*domain.InteractionLog
	for rows.Next() {
		var entry domain.InteractionLog
		var createdAt int64
		if err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.SessionID, &entry.TurnNumber,
			&entry.EventType, &entry.Content, &entry.Model, &entry.ResponseTimeMs,
			&entry.DeviceType, &entry.BrowserName, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan interaction log row: %w", err)
		}
		entry.CreatedAt = time.UnixMilli(createdAt)
		logs = append(logs, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interaction logs: %w", err)
	}
	return logs, nil
}

// InteractionStats aggregates the audit log over an optional window.
func (s *SQLiteStore) InteractionStats(ctx context.Context, start, end *time.Time) (*domain.InteractionStats, error) {
	query := `
		SELECT COUNT(DISTINCT session_id),
		       COUNT(*),
		       COALESCE(AVG(CASE WHEN event_type = ? THEN response_time_ms END), 0),
		       COUNT(DISTINCT user_id)
		FROM interaction_logs`

	args := []interface{}{domain.EventAssistantMessage}
	var conds []string
	if start != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, start.UnixMilli())
	}
	if end != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, end.UnixMilli())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var stats domain.InteractionStats
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalSessions, &stats.TotalMessages, &stats.AverageResponseTime, &stats.ActiveUsers,
	)
	if err != nil {
		return nil, fmt.Errorf("query interaction stats: %w", err)
	}
	return &stats, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "what", what, "error", err)
	}
}
