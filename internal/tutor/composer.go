package tutor

import (
	"github.com/avilov/tutorlab/internal/domain"
)

// AgentReply is one agent's outcome in a collaborative exchange.
// Message is nil when the agent failed.
type AgentReply struct {
	Agent          *domain.Agent
	Message        *domain.Message
	Model          string
	ResponseTimeMs int64
	Err            error
}

// AgentOutcome is the caller-visible record of one agent's participation.
type AgentOutcome struct {
	AgentID        int64  `json:"agentId"`
	AgentName      string `json:"agentName"`
	Succeeded      bool   `json:"succeeded"`
	Model          string `json:"model,omitempty"`
	ResponseTimeMs int64  `json:"responseTimeMs,omitempty"`
	Error          string `json:"error,omitempty"`
}

// CollaborativeInfo summarizes a collaborative exchange: which agents
// participated and which failed.
type CollaborativeInfo struct {
	Style  string         `json:"style"`
	Agents []AgentOutcome `json:"agents"`
}

// ResponseComposer turns the set of per-agent replies into the single
// caller-visible assistant message. How multiple replies merge is an
// extension point; the default keeps the first successful reply as the
// primary answer and reports the rest through CollaborativeInfo.
type ResponseComposer interface {
	Compose(style string, replies []AgentReply) (*domain.Message, *CollaborativeInfo)
}

// PrimaryComposer is the default composer: the first successful agent's
// reply is the primary assistant message, with full attribution for
// every participant in the summary.
type PrimaryComposer struct{}

// Compose implements ResponseComposer.
func (PrimaryComposer) Compose(style string, replies []AgentReply) (*domain.Message, *CollaborativeInfo) {
	info := &CollaborativeInfo{Style: style}
	var primary *domain.Message

	for _, reply := range replies {
		outcome := AgentOutcome{
			AgentID:   reply.Agent.ID,
			AgentName: reply.Agent.DisplayName,
		}
		if reply.Err != nil {
			outcome.Error = reply.Err.Error()
		} else {
			outcome.Succeeded = true
			outcome.Model = reply.Model
			outcome.ResponseTimeMs = reply.ResponseTimeMs
			if primary == nil {
				primary = reply.Message
			}
		}
		info.Agents = append(info.Agents, outcome)
	}

	return primary, info
}
