// Package tutor implements the tutoring orchestration core: per-user
// session state, message dispatch to LLM-backed agents, and the
// multi-agent collaboration path.
package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avilov/tutorlab/internal/audit"
	"github.com/avilov/tutorlab/internal/domain"
	"github.com/avilov/tutorlab/internal/provider"
	"github.com/avilov/tutorlab/internal/store"
	"github.com/google/uuid"
)

// Resolver selects the LLM backend for a call. provider.Resolver
// satisfies it.
type Resolver interface {
	Resolve(ctx context.Context) (*provider.Selection, error)
}

// AdapterFactory builds an adapter for a resolved selection.
// provider.Registry satisfies it.
type AdapterFactory interface {
	New(sel provider.Selection) (provider.Adapter, error)
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	HistoryWindow   int
	MaxCollabAgents int
	Selector        AgentSelector
	Composer        ResponseComposer
}

// Service is the tutoring orchestration entry point.
type Service struct {
	repo            store.Repository
	resolver        Resolver
	adapters        AdapterFactory
	auditor         *audit.Logger
	selector        AgentSelector
	composer        ResponseComposer
	historyWindow   int
	maxCollabAgents int
}

// NewService creates the tutoring service.
func NewService(repo store.Repository, resolver Resolver, adapters AdapterFactory, auditor *audit.Logger, opts Options) *Service {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 20
	}
	if opts.MaxCollabAgents <= 0 {
		opts.MaxCollabAgents = 3
	}
	if opts.Selector == nil {
		opts.Selector = ActiveAgentSelector{}
	}
	if opts.Composer == nil {
		opts.Composer = PrimaryComposer{}
	}
	return &Service{
		repo:            repo,
		resolver:        resolver,
		adapters:        adapters,
		auditor:         auditor,
		selector:        opts.Selector,
		composer:        opts.Composer,
		historyWindow:   opts.HistoryWindow,
		maxCollabAgents: opts.MaxCollabAgents,
	}
}

// GetOrCreateSession returns the user's tutor session, creating it with
// defaults (manual mode, no active agent) on first access. Idempotent.
func (s *Service) GetOrCreateSession(ctx context.Context, userID string) (*domain.TutorSession, error) {
	session, err := s.repo.GetSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session != nil {
		return session, nil
	}

	now := time.Now()
	session = &domain.TutorSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mode:      domain.ModeManual,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		// A concurrent request may have created the row first.
		existing, getErr := s.repo.GetSession(ctx, userID)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return session, nil
}

// UpdateMode validates and persists a session mode change.
func (s *Service) UpdateMode(ctx context.Context, userID string, mode domain.SessionMode) (*domain.TutorSession, error) {
	if !mode.Valid() {
		return nil, NewValidationError("invalid mode")
	}
	if _, err := s.GetOrCreateSession(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.UpdateSessionMode(ctx, userID, mode)
}

// SetActiveAgent validates the agent exists and is active, then persists
// the session's active-agent pointer.
func (s *Service) SetActiveAgent(ctx context.Context, userID string, agentID int64) (*domain.TutorSession, error) {
	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil || !agent.IsActive {
		return nil, NewValidationError("agent not found or inactive")
	}
	if _, err := s.GetOrCreateSession(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.UpdateSessionAgent(ctx, userID, agentID)
}

// Agents lists the active agents available to learners.
func (s *Service) Agents(ctx context.Context) ([]*domain.Agent, error) {
	return s.repo.ListAgents(ctx, true)
}

// Conversations lists a user's conversations.
func (s *Service) Conversations(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	return s.repo.ListConversations(ctx, userID)
}

// ConversationDetail is a conversation plus its recent messages. The
// agent's welcome message is included so clients can render a greeting
// for an empty conversation.
type ConversationDetail struct {
	Conversation   *domain.Conversation `json:"conversation"`
	Messages       []*domain.Message    `json:"messages"`
	WelcomeMessage string               `json:"welcome_message,omitempty"`
}

// GetOrCreateConversation returns the conversation for an agent,
// creating it on first access.
func (s *Service) GetOrCreateConversation(ctx context.Context, userID string, agentID int64) (*ConversationDetail, error) {
	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, NewValidationError("agent not found")
	}

	conv, err := s.repo.GetOrCreateConversation(ctx, userID, agentID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.RecentMessages(ctx, conv.ID, s.historyWindow)
	if err != nil {
		return nil, err
	}

	detail := &ConversationDetail{Conversation: conv, Messages: msgs}
	if len(msgs) == 0 {
		detail.WelcomeMessage = agent.WelcomeMessage
	}
	return detail, nil
}

// ClearConversation deletes all messages for the user's conversation
// with an agent and returns the number deleted.
func (s *Service) ClearConversation(ctx context.Context, userID string, agentID int64) (int64, error) {
	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return 0, err
	}
	if agent == nil {
		return 0, NewValidationError("agent not found")
	}

	conv, err := s.repo.GetOrCreateConversation(ctx, userID, agentID)
	if err != nil {
		return 0, err
	}
	count, err := s.repo.ClearConversation(ctx, conv.ID)
	if err != nil {
		return 0, err
	}

	session, sessErr := s.GetOrCreateSession(ctx, userID)
	if sessErr == nil {
		s.auditor.Log(ctx, &domain.InteractionLog{
			UserID:    userID,
			SessionID: session.ID,
			EventType: domain.EventConversationCleared,
			Content:   fmt.Sprintf("cleared %d messages with agent %d", count, agentID),
		})
	}

	return count, nil
}

// CollaborativeSettings is the per-request instruction to fan a message
// out to multiple agents. Orthogonal to session mode.
type CollaborativeSettings struct {
	Style     string `json:"style"`
	MaxAgents int    `json:"maxAgents"`
}

// SendRequest is one inbound learner message.
type SendRequest struct {
	UserID        string
	AgentID       int64 // 0 means unaddressed
	Message       string
	Device        domain.DeviceInfo
	Collaborative *CollaborativeSettings
}

// SendResult is the normalized response to a send.
type SendResult struct {
	UserMessage      *domain.Message    `json:"userMessage"`
	AssistantMessage *domain.Message    `json:"assistantMessage"`
	Model            string             `json:"model,omitempty"`
	ResponseTimeMs   int64              `json:"responseTimeMs,omitempty"`
	Collaborative    *CollaborativeInfo `json:"collaborativeInfo,omitempty"`
}

// SendMessage handles one learner message end to end: agent resolution,
// bounded context build, provider dispatch, and durable persistence of
// the exchange.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (*SendResult, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, NewValidationError("message is required")
	}

	session, err := s.GetOrCreateSession(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	agent, err := s.resolveTargetAgent(ctx, session, req)
	if err != nil {
		return nil, err
	}

	if req.Collaborative != nil {
		return s.collaborate(ctx, session, agent, req)
	}

	conv, err := s.repo.GetOrCreateConversation(ctx, req.UserID, agent.ID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.RecentMessages(ctx, conv.ID, s.historyWindow)
	if err != nil {
		return nil, err
	}

	adapter, err := s.newAdapter(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := adapter.Send(ctx, chatRequestFor(agent, req.Message, history))
	if err != nil {
		return nil, err
	}

	slog.Info("Agent reply received",
		"user_id", req.UserID,
		"agent_id", agent.ID,
		"model", resp.Model,
		"response_time_ms", resp.ResponseTimeMs,
	)

	result, err := s.repo.RecordExchange(ctx, &store.ExchangeRecord{
		UserID:             req.UserID,
		SessionID:          session.ID,
		UserConversationID: conv.ID,
		UserContent:        req.Message,
		Device:             req.Device,
		Assistants: []store.AssistantWrite{{
			ConversationID: conv.ID,
			AgentID:        agent.ID,
			Content:        resp.Reply,
			Model:          resp.Model,
			ResponseTimeMs: resp.ResponseTimeMs,
		}},
	})
	if err != nil {
		return nil, err
	}

	return &SendResult{
		UserMessage:      result.UserMessage,
		AssistantMessage: result.AssistantMessages[0],
		Model:            resp.Model,
		ResponseTimeMs:   resp.ResponseTimeMs,
	}, nil
}

// resolveTargetAgent picks the agent for a send: explicit selection
// first, then the session's active agent in manual mode, then the
// pluggable selector in router mode.
func (s *Service) resolveTargetAgent(ctx context.Context, session *domain.TutorSession, req SendRequest) (*domain.Agent, error) {
	if req.AgentID > 0 {
		agent, err := s.repo.GetAgent(ctx, req.AgentID)
		if err != nil {
			return nil, err
		}
		if agent == nil || !agent.IsActive {
			return nil, NewValidationError("agent not found or inactive")
		}
		return agent, nil
	}

	if session.Mode == domain.ModeManual {
		if session.ActiveAgentID == nil {
			return nil, NewValidationError("no agent selected")
		}
		agent, err := s.repo.GetAgent(ctx, *session.ActiveAgentID)
		if err != nil {
			return nil, err
		}
		if agent == nil || !agent.IsActive {
			return nil, NewValidationError("agent not found or inactive")
		}
		return agent, nil
	}

	agents, err := s.repo.ListAgents(ctx, true)
	if err != nil {
		return nil, err
	}
	return s.selector.Select(ctx, session, req.Message, agents)
}

func (s *Service) newAdapter(ctx context.Context) (provider.Adapter, error) {
	sel, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return s.adapters.New(*sel)
}

// chatRequestFor builds the provider request for one agent: its system
// prompt, its personality rendered as a context note, its model and
// temperature preferences, and the bounded history.
func chatRequestFor(agent *domain.Agent, message string, history []*domain.Message) provider.ChatRequest {
	prompt := make([]provider.PromptMessage, 0, len(history))
	for _, msg := range history {
		prompt = append(prompt, provider.PromptMessage{Role: string(msg.Role), Content: msg.Content})
	}

	req := provider.ChatRequest{
		Message:       message,
		SystemPrompt:  agent.SystemPrompt,
		History:       prompt,
		ModelOverride: agent.ModelPreference,
		Temperature:   agent.Temperature,
	}
	if agent.Personality != "" {
		req.ContextNote = "Personality and style guidance: " + agent.Personality
	}
	return req
}
