package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	sbotel "github.com/Strob0t/Switchboard/internal/adapter/otel"
	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/domain/conversation"
	"github.com/Strob0t/Switchboard/internal/domain/knowledge"
	"github.com/Strob0t/Switchboard/internal/domain/orchestration"
	knowledgeport "github.com/Strob0t/Switchboard/internal/port/knowledge"
	"github.com/Strob0t/Switchboard/internal/port/llm"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
)

// AgentDeps are the collaborators shared by the domain agents.
type AgentDeps struct {
	Generator llm.Generator
	Knowledge knowledgeport.Provider
	Triggers  orchestration.TriggerTable
	Repo      *ConversationRepo
	Queue     messagequeue.Queue
	Metrics   *sbotel.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// AgentService answers the messages routed to one domain agent. It either
// replies, or hands the conversation to another team before or after
// generating.
type AgentService struct {
	profile agent.Profile
	deps    AgentDeps
	now     func() time.Time
}

// NewAgentService creates the agent described by profile.
func NewAgentService(profile agent.Profile, deps AgentDeps) *AgentService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if deps.Triggers == nil {
		deps.Triggers = orchestration.DefaultTriggers()
	}
	return &AgentService{profile: profile, deps: deps, now: now}
}

// Type returns the domain this agent serves.
func (s *AgentService) Type() agent.Type { return s.profile.Type }

// Respond handles one agent invocation. Failures are answered with the
// profile's apology and a handoff to its fallback domain; they are not
// returned.
func (s *AgentService) Respond(ctx context.Context, p messagequeue.AgentMessagePayload) error {
	ctx, span := sbotel.StartAgentSpan(ctx, p.ConversationID, string(s.profile.Type))
	err := s.respond(ctx, p)
	sbotel.EndSpan(span, err)
	if err != nil {
		s.deps.Metrics.Failed(ctx, string(s.profile.Type))
		slog.ErrorContext(ctx, "agent turn failed", "agent", string(s.profile.Type), "error", err)
		s.fail(ctx, p)
	}
	return nil
}

// HandleAgentMessage is the agents.<type>.message handler.
func (s *AgentService) HandleAgentMessage(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.AgentMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode agent message: %w", err)
	}
	return s.Respond(ctx, p)
}

func (s *AgentService) respond(ctx context.Context, p messagequeue.AgentMessagePayload) error {
	self := s.profile.Type

	conv, err := s.loadContext(ctx, p)
	if err != nil {
		return err
	}

	docs, err := s.deps.Knowledge.Documents(ctx, self)
	if err != nil {
		return fmt.Errorf("load %s knowledge: %w", self, err)
	}
	docs = knowledge.RankRelevant(docs, p.Message)

	// Handoff notes are coordinator text; matching them would bounce the
	// conversation straight back.
	if !p.Continuation {
		if m, ok := s.deps.Triggers.Match(self, p.Message); ok {
			slog.InfoContext(ctx, "trigger phrase matched",
				"agent", string(self), "target", string(m.Target), "phrase", m.Phrase)
			return s.requestHandoff(ctx, conv, m.Target, m.Reason)
		}
	}

	instructions, err := buildInstructions(self, knowledge.Format(docs), p.Continuation)
	if err != nil {
		return err
	}
	history := transcriptHistory(conv)
	if p.Continuation || len(history) == 0 {
		history = append(history, llm.Message{Role: llm.RoleUser, Content: p.Message})
	}

	start := s.now()
	resp, err := s.deps.Generator.Generate(ctx, llm.Request{
		Model:       s.profile.Model,
		System:      instructions,
		Messages:    history,
		Temperature: s.profile.Temperature,
		MaxTokens:   s.profile.MaxTokens,
	})
	s.deps.Metrics.Generation(ctx, "respond", s.now().Sub(start), err)
	if err != nil {
		return fmt.Errorf("generate %s reply: %w", self, err)
	}

	text, target, flagged := orchestration.ParseMarkers(resp.Content, self)
	at := s.now()
	if text != "" {
		conv.Append(conversation.Message{
			ID:        uuid.NewString(),
			Role:      conversation.RoleAssistant,
			Content:   text,
			Source:    self.Source(),
			Timestamp: at.UnixMilli(),
		})
	}
	conv.CurrentAgent = self
	if err := s.deps.Repo.Save(ctx, conv); err != nil {
		return err
	}

	if text != "" {
		if err := sendMessage(ctx, s.deps.Queue, p.ConversationID, text, self, at); err != nil {
			slog.ErrorContext(ctx, "reply delivery failed", "agent", string(self), "error", err)
		}
		s.deps.Metrics.Replied(ctx, string(self))
	}

	if flagged {
		slog.InfoContext(ctx, "reply requested handoff", "agent", string(self), "target", string(target))
		if err := s.requestHandoff(ctx, conv, target, orchestration.PostReplyReason); err != nil {
			slog.ErrorContext(ctx, "handoff request failed", "agent", string(self), "error", err)
		}
	}
	return nil
}

// loadContext prefers the stored transcript and merges the entries the
// event carried that the store has not seen. The customer message is
// appended unless it already closes the transcript.
func (s *AgentService) loadContext(ctx context.Context, p messagequeue.AgentMessagePayload) (*conversation.Context, error) {
	stored, ok, err := s.deps.Repo.Load(ctx, p.ConversationID)
	if err != nil {
		return nil, err
	}
	var conv *conversation.Context
	switch {
	case ok:
		conv = stored
		conv.AdoptPending(p.Context)
	case p.Context != nil:
		conv = p.Context.Clone()
		conv.ConversationID = p.ConversationID
	default:
		conv = conversation.New(p.ConversationID, s.profile.Type)
	}

	if !p.Continuation {
		if last, ok := conv.LastUserMessage(); !ok || last != p.Message {
			conv.Append(conversation.Message{
				ID:        uuid.NewString(),
				Role:      conversation.RoleUser,
				Content:   p.Message,
				Source:    "customer",
				Timestamp: s.now().UnixMilli(),
			})
		}
	}
	return conv, nil
}

func (s *AgentService) requestHandoff(ctx context.Context, conv *conversation.Context, to agent.Type, reason string) error {
	return publishJSON(ctx, s.deps.Queue, messagequeue.SubjectHandoffRequest, messagequeue.HandoffRequestPayload{
		ConversationID: conv.ConversationID,
		FromAgent:      s.profile.Type,
		ToAgent:        to,
		Reason:         reason,
		Context:        conv.Clone(),
	})
}

// fail apologizes and passes the conversation to the fallback domain.
// An emergency dispatch only apologizes: the coordinator already failed
// once and another request could cycle.
func (s *AgentService) fail(ctx context.Context, p messagequeue.AgentMessagePayload) {
	self := s.profile.Type
	if err := sendMessage(ctx, s.deps.Queue, p.ConversationID, s.profile.FallbackMessage, self, s.now()); err != nil {
		slog.ErrorContext(ctx, "apology delivery failed", "agent", string(self), "error", err)
	}
	if p.Emergency {
		return
	}

	conv := p.Context.Clone()
	if conv == nil {
		conv = conversation.New(p.ConversationID, self)
	}
	conv.ConversationID = p.ConversationID
	if err := s.requestHandoff(ctx, conv, s.profile.Fallback, s.profile.ErrorReason()); err != nil {
		slog.ErrorContext(ctx, "fallback handoff failed", "agent", string(self), "error", err)
	}
}

// transcriptHistory maps the transcript onto generator roles. Everything
// not written by the customer is presented as the assistant's side.
func transcriptHistory(c *conversation.Context) []llm.Message {
	out := make([]llm.Message, 0, c.Len()+1)
	for _, m := range c.Messages {
		role := llm.RoleAssistant
		if m.Role == conversation.RoleUser {
			role = llm.RoleUser
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}
