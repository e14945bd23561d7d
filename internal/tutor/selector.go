package tutor

import (
	"context"

	"github.com/avilov/tutorlab/internal/domain"
)

// AgentSelector picks the agent for an unaddressed message when the
// session is in router mode. The selection heuristic is an extension
// point: implementations may use keyword matching, embeddings, or
// anything else without touching the send path.
type AgentSelector interface {
	Select(ctx context.Context, session *domain.TutorSession, message string, agents []*domain.Agent) (*domain.Agent, error)
}

// ActiveAgentSelector is the default selector: it prefers the session's
// active agent and falls back to the first active agent.
type ActiveAgentSelector struct{}

// Select implements AgentSelector.
func (ActiveAgentSelector) Select(_ context.Context, session *domain.TutorSession, _ string, agents []*domain.Agent) (*domain.Agent, error) {
	if len(agents) == 0 {
		return nil, NewValidationError("no active agents available")
	}
	if session.ActiveAgentID != nil {
		for _, agent := range agents {
			if agent.ID == *session.ActiveAgentID {
				return agent, nil
			}
		}
	}
	return agents[0], nil
}
