package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/avilov/tutorlab/internal/device"
	"github.com/avilov/tutorlab/internal/domain"
	"github.com/avilov/tutorlab/internal/identity"
	"github.com/avilov/tutorlab/internal/tutor"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the learner-facing tutoring routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/tutor", func(r chi.Router) {
		r.Get("/session", h.GetSession)
		r.Put("/session/mode", h.UpdateMode)
		r.Put("/session/agent", h.SetActiveAgent)
		r.Get("/agents", h.ListAgents)
		r.Get("/conversations", h.ListConversations)
		r.Get("/conversations/{agentID}", h.GetConversation)
		r.Delete("/conversations/{agentID}", h.ClearConversation)
		r.Post("/conversations/{agentID}/messages", h.SendMessage)
	})
}

// sessionOverview is the get-or-create session payload: the session plus
// its conversations and the available agents.
type sessionOverview struct {
	Session       *domain.TutorSession   `json:"session"`
	Conversations []*domain.Conversation `json:"conversations"`
	Agents        []domain.AgentSummary  `json:"agents"`
}

// GetSession handles GET /api/tutor/session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	session, err := h.tutor.GetOrCreateSession(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}
	conversations, err := h.tutor.Conversations(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}
	agents, err := h.tutor.Agents(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	summaries := make([]domain.AgentSummary, 0, len(agents))
	for _, agent := range agents {
		summaries = append(summaries, agent.Summarize())
	}

	JSON(w, http.StatusOK, sessionOverview{
		Session:       session,
		Conversations: conversations,
		Agents:        summaries,
	})
}

type updateModeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

// UpdateMode handles PUT /api/tutor/session/mode.
func (h *Handler) UpdateMode(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req updateModeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	session, err := h.tutor.UpdateMode(r.Context(), userID, domain.SessionMode(req.Mode))
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, session)
}

type setAgentRequest struct {
	AgentID *int64 `json:"agentId" validate:"required"`
}

// SetActiveAgent handles PUT /api/tutor/session/agent.
func (h *Handler) SetActiveAgent(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req setAgentRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	session, err := h.tutor.SetActiveAgent(r.Context(), userID, *req.AgentID)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, session)
}

// ListAgents handles GET /api/tutor/agents.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.tutor.Agents(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	summaries := make([]domain.AgentSummary, 0, len(agents))
	for _, agent := range agents {
		summaries = append(summaries, agent.Summarize())
	}
	JSON(w, http.StatusOK, summaries)
}

// ListConversations handles GET /api/tutor/conversations.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	conversations, err := h.tutor.Conversations(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, conversations)
}

// agentIDFromURL parses the {agentID} route parameter. A non-numeric
// identifier is a validation failure before any store access.
func agentIDFromURL(r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "agentID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GetConversation handles GET /api/tutor/conversations/{agentID}.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	agentID, ok := agentIDFromURL(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid agent identifier")
		return
	}

	detail, err := h.tutor.GetOrCreateConversation(r.Context(), userID, agentID)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, detail)
}

// ClearConversation handles DELETE /api/tutor/conversations/{agentID}.
func (h *Handler) ClearConversation(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	agentID, ok := agentIDFromURL(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid agent identifier")
		return
	}

	count, err := h.tutor.ClearConversation(r.Context(), userID, agentID)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]int64{"deleted": count})
}

type sendMessageRequest struct {
	Message               string                       `json:"message" validate:"required"`
	CollaborativeSettings *tutor.CollaborativeSettings `json:"collaborativeSettings,omitempty"`
}

// SendMessage handles POST /api/tutor/conversations/{agentID}/messages.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	agentID, ok := agentIDFromURL(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid agent identifier")
		return
	}

	var req sendMessageRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	info := device.Info(h.classifier, r.UserAgent())

	slog.Info("Tutor message received",
		"user_id", userID,
		"agent_id", agentID,
		"device_type", info.DeviceType,
		"collaborative", req.CollaborativeSettings != nil,
		"message_length", len(req.Message),
	)

	result, err := h.tutor.SendMessage(r.Context(), tutor.SendRequest{
		UserID:        userID,
		AgentID:       agentID,
		Message:       req.Message,
		Device:        info,
		Collaborative: req.CollaborativeSettings,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}
