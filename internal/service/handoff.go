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
	"github.com/Strob0t/Switchboard/internal/domain/orchestration"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
)

// CoordinatorConfig holds the handoff policy and its timings.
type CoordinatorConfig struct {
	Policy          orchestration.Policy
	HandoffDelay    time.Duration
	EscalationDelay time.Duration
	AuditTTL        time.Duration
}

// CoordinatorService arbitrates handoff requests: it validates them,
// records accepted transfers and re-dispatches the conversation to the
// receiving agent.
type CoordinatorService struct {
	repo     *ConversationRepo
	queue    messagequeue.Queue
	dispatch *Dispatcher
	cfg      CoordinatorConfig
	metrics  *sbotel.Metrics
	now      func() time.Time
}

// NewCoordinatorService creates a CoordinatorService. metrics may be nil.
func NewCoordinatorService(repo *ConversationRepo, queue messagequeue.Queue, dispatch *Dispatcher, cfg CoordinatorConfig, metrics *sbotel.Metrics) *CoordinatorService {
	return &CoordinatorService{
		repo:     repo,
		queue:    queue,
		dispatch: dispatch,
		cfg:      cfg,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Coordinate processes one handoff request. Internal errors take the
// emergency path and are not returned.
func (s *CoordinatorService) Coordinate(ctx context.Context, req messagequeue.HandoffRequestPayload) error {
	ctx, span := sbotel.StartHandoffSpan(ctx, req.ConversationID, string(req.FromAgent), string(req.ToAgent))
	err := s.coordinate(ctx, req)
	sbotel.EndSpan(span, err)
	if err != nil {
		s.emergency(ctx, req, err)
	}
	return nil
}

// HandleHandoffRequest is the handoffs.request handler.
func (s *CoordinatorService) HandleHandoffRequest(ctx context.Context, _ string, data []byte) error {
	var req messagequeue.HandoffRequestPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode handoff request: %w", err)
	}
	return s.Coordinate(ctx, req)
}

func (s *CoordinatorService) coordinate(ctx context.Context, req messagequeue.HandoffRequestPayload) error {
	stored, ok, err := s.repo.Load(ctx, req.ConversationID)
	if err != nil {
		return err
	}
	conv := stored
	switch {
	case ok:
		conv.AdoptPending(req.Context)
	case req.Context != nil:
		conv = req.Context.Clone()
		conv.ConversationID = req.ConversationID
	default:
		conv = conversation.New(req.ConversationID, req.FromAgent)
	}

	policy := s.cfg.Policy
	if req.Escalation {
		policy.LoopThreshold = 0
	}
	if reason := policy.Check(req.FromAgent, req.ToAgent, conv); reason != "" {
		return s.reject(ctx, req, conv, reason)
	}
	return s.accept(ctx, req, conv)
}

// reject reassures the customer and, unless the request already targeted
// a human, escalates after a pause.
func (s *CoordinatorService) reject(ctx context.Context, req messagequeue.HandoffRequestPayload, conv *conversation.Context, reason string) error {
	s.metrics.Handoff(ctx, string(req.FromAgent), string(req.ToAgent), false)
	slog.WarnContext(ctx, "handoff rejected",
		"from", string(req.FromAgent), "to", string(req.ToAgent), "reason", reason)

	if err := sendMessage(ctx, s.queue, req.ConversationID, orchestration.RejectionMessage, req.FromAgent, s.now()); err != nil {
		return err
	}
	if req.ToAgent == agent.TypeHuman {
		return nil
	}

	escalation := messagequeue.HandoffRequestPayload{
		ConversationID: req.ConversationID,
		FromAgent:      req.FromAgent,
		ToAgent:        agent.TypeHuman,
		Reason:         orchestration.EscalationReason(reason),
		Context:        conv.Clone(),
		Escalation:     true,
	}
	s.dispatch.Schedule(ctx, s.cfg.EscalationDelay, func(ctx context.Context) {
		if err := publishJSON(ctx, s.queue, messagequeue.SubjectHandoffRequest, escalation); err != nil {
			slog.ErrorContext(ctx, "human escalation failed", "error", err)
		}
	})
	return nil
}

func (s *CoordinatorService) accept(ctx context.Context, req messagequeue.HandoffRequestPayload, conv *conversation.Context) error {
	at := s.now()
	text := orchestration.TransitionMessage(req.FromAgent, req.ToAgent)

	conv.Append(conversation.Message{
		ID:                uuid.NewString(),
		Role:              conversation.RoleAssistant,
		Content:           text,
		Source:            conversation.SourceCoordinator,
		Timestamp:         at.UnixMilli(),
		HandoffTransition: true,
	})
	conv.CurrentAgent = req.ToAgent
	conv.HandoffReason = req.Reason
	if err := s.repo.Save(ctx, conv); err != nil {
		return err
	}

	rec := orchestration.Record{
		ConversationID: req.ConversationID,
		FromAgent:      req.FromAgent,
		ToAgent:        req.ToAgent,
		Reason:         req.Reason,
		Timestamp:      at.UnixMilli(),
	}
	if err := s.repo.SaveHandoff(ctx, rec, s.cfg.AuditTTL); err != nil {
		return err
	}

	if err := sendMessage(ctx, s.queue, req.ConversationID, text, req.FromAgent, at); err != nil {
		return err
	}

	next := messagequeue.AgentMessagePayload{
		ConversationID: req.ConversationID,
		AgentType:      req.ToAgent,
		Message:        orchestration.ContinuationMessage(req.FromAgent, req.Reason),
		Context:        conv.Clone(),
		Continuation:   true,
	}
	subject := agentSubject(req.ToAgent)
	s.dispatch.Schedule(ctx, s.cfg.HandoffDelay, func(ctx context.Context) {
		if err := publishJSON(ctx, s.queue, subject, next); err != nil {
			slog.ErrorContext(ctx, "handoff dispatch failed", "subject", subject, "error", err)
		}
	})

	s.metrics.Handoff(ctx, string(req.FromAgent), string(req.ToAgent), true)
	slog.InfoContext(ctx, "handoff accepted",
		"from", string(req.FromAgent), "to", string(req.ToAgent), "reason", req.Reason)
	return nil
}

// emergency apologizes as the system and hands the conversation to sales
// without validation.
func (s *CoordinatorService) emergency(ctx context.Context, req messagequeue.HandoffRequestPayload, cause error) {
	s.metrics.Emergency(ctx)
	slog.ErrorContext(ctx, "handoff coordination failed, routing to sales",
		"from", string(req.FromAgent), "to", string(req.ToAgent), "error", cause)

	if err := sendMessage(ctx, s.queue, req.ConversationID, orchestration.EmergencyApology, agent.TypeSystem, s.now()); err != nil {
		slog.ErrorContext(ctx, "emergency apology failed", "error", err)
	}
	err := publishJSON(ctx, s.queue, agentSubject(agent.TypeSales), messagequeue.AgentMessagePayload{
		ConversationID: req.ConversationID,
		AgentType:      agent.TypeSales,
		Message:        orchestration.EmergencyMessage(req.FromAgent, req.ToAgent),
		Context:        req.Context,
		Continuation:   true,
		Emergency:      true,
	})
	if err != nil {
		slog.ErrorContext(ctx, "emergency dispatch failed", "error", err)
	}
}
