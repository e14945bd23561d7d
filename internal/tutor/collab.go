package tutor

import (
	"context"
	"log/slog"

	"github.com/avilov/tutorlab/internal/domain"
	"github.com/avilov/tutorlab/internal/provider"
	"github.com/avilov/tutorlab/internal/store"
	"golang.org/x/sync/errgroup"
)

// StyleParallel fans the same message out to every participating agent
// concurrently.
const StyleParallel = "parallel"

// agentCall carries one participant's prepared context and, after the
// fan-out, its outcome.
type agentCall struct {
	agent        *domain.Agent
	conversation *domain.Conversation
	request      provider.ChatRequest
	response     *provider.ChatResponse
	err          error
}

// collaborate dispatches the message to up to MaxAgents agents
// concurrently and aggregates their replies. One agent's failure never
// aborts the others; the request fails only when every agent fails.
func (s *Service) collaborate(ctx context.Context, session *domain.TutorSession, primary *domain.Agent, req SendRequest) (*SendResult, error) {
	settings := req.Collaborative
	if settings.Style != StyleParallel {
		return nil, NewValidationError("unsupported collaboration style")
	}

	participants, err := s.selectParticipants(ctx, primary, settings.MaxAgents)
	if err != nil {
		return nil, err
	}

	adapter, err := s.newAdapter(ctx)
	if err != nil {
		return nil, err
	}

	// Prepare each participant's conversation and bounded history before
	// the fan-out so the concurrent section does provider calls only.
	calls := make([]*agentCall, len(participants))
	for i, agent := range participants {
		conv, err := s.repo.GetOrCreateConversation(ctx, req.UserID, agent.ID)
		if err != nil {
			return nil, err
		}
		history, err := s.repo.RecentMessages(ctx, conv.ID, s.historyWindow)
		if err != nil {
			return nil, err
		}
		calls[i] = &agentCall{
			agent:        agent,
			conversation: conv,
			request:      chatRequestFor(agent, req.Message, history),
		}
	}

	// Fan out. Goroutines always return nil so one failure cannot cancel
	// the siblings; outcomes are collected per slot.
	var g errgroup.Group
	for _, call := range calls {
		g.Go(func() error {
			call.response, call.err = adapter.Send(ctx, call.request)
			if call.err != nil {
				slog.Warn("Collaborative agent call failed",
					"user_id", req.UserID,
					"agent_id", call.agent.ID,
					"error", call.err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var writes []store.AssistantWrite
	var firstErr error
	for _, call := range calls {
		if call.err != nil {
			if firstErr == nil {
				firstErr = call.err
			}
			continue
		}
		writes = append(writes, store.AssistantWrite{
			ConversationID: call.conversation.ID,
			AgentID:        call.agent.ID,
			Content:        call.response.Reply,
			Model:          call.response.Model,
			ResponseTimeMs: call.response.ResponseTimeMs,
		})
	}
	if len(writes) == 0 {
		return nil, firstErr
	}

	primaryConv, err := s.repo.GetOrCreateConversation(ctx, req.UserID, primary.ID)
	if err != nil {
		return nil, err
	}
	result, err := s.repo.RecordExchange(ctx, &store.ExchangeRecord{
		UserID:             req.UserID,
		SessionID:          session.ID,
		UserConversationID: primaryConv.ID,
		UserContent:        req.Message,
		Device:             req.Device,
		Assistants:         writes,
	})
	if err != nil {
		return nil, err
	}

	// Pair persisted messages back with their calls; the write order
	// matches the successful-call order.
	replies := make([]AgentReply, 0, len(calls))
	written := 0
	for _, call := range calls {
		reply := AgentReply{Agent: call.agent, Err: call.err}
		if call.err == nil {
			reply.Message = result.AssistantMessages[written]
			reply.Model = call.response.Model
			reply.ResponseTimeMs = call.response.ResponseTimeMs
			written++
		}
		replies = append(replies, reply)
	}

	assistant, info := s.composer.Compose(settings.Style, replies)

	res := &SendResult{
		UserMessage:      result.UserMessage,
		AssistantMessage: assistant,
		Collaborative:    info,
	}
	if assistant != nil {
		res.Model = assistant.Model
		for _, reply := range replies {
			if reply.Message == assistant {
				res.ResponseTimeMs = reply.ResponseTimeMs
				break
			}
		}
	}
	return res, nil
}

// selectParticipants returns up to maxAgents distinct active agents with
// the addressed agent first.
func (s *Service) selectParticipants(ctx context.Context, primary *domain.Agent, maxAgents int) ([]*domain.Agent, error) {
	if maxAgents <= 0 {
		maxAgents = s.maxCollabAgents
	}
	if maxAgents > s.maxCollabAgents {
		maxAgents = s.maxCollabAgents
	}

	agents, err := s.repo.ListAgents(ctx, true)
	if err != nil {
		return nil, err
	}

	participants := []*domain.Agent{primary}
	for _, agent := range agents {
		if len(participants) >= maxAgents {
			break
		}
		if agent.ID == primary.ID {
			continue
		}
		participants = append(participants, agent)
	}
	return participants, nil
}
