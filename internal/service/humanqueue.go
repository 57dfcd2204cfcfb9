package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/domain/conversation"
	"github.com/Strob0t/Switchboard/internal/port/broadcast"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
	"github.com/Strob0t/Switchboard/internal/port/notifier"
)

const alertTimeout = 5 * time.Second

// HumanQueueService parks conversations for a human operator.
type HumanQueueService struct {
	repo      *ConversationRepo
	hub       broadcast.Broadcaster
	notifiers []notifier.Notifier
	now       func() time.Time
}

// NewHumanQueueService creates a HumanQueueService.
func NewHumanQueueService(repo *ConversationRepo, hub broadcast.Broadcaster) *HumanQueueService {
	return &HumanQueueService{repo: repo, hub: hub, now: time.Now}
}

// WithNotifiers alerts operators on every handoff into the queue.
func (s *HumanQueueService) WithNotifiers(ns ...notifier.Notifier) *HumanQueueService {
	s.notifiers = append(s.notifiers, ns...)
	return s
}

// Enqueue notifies operators and marks the conversation as human-owned so
// later customer messages bypass the domain agents.
func (s *HumanQueueService) Enqueue(ctx context.Context, p messagequeue.AgentMessagePayload) error {
	s.hub.BroadcastEvent(ctx, broadcast.EventHumanQueued, broadcast.HumanQueuedEvent{
		ConversationID: p.ConversationID,
		Message:        p.Message,
		Timestamp:      s.now().UnixMilli(),
	})

	conv, ok, err := s.repo.Load(ctx, p.ConversationID)
	if err != nil {
		slog.ErrorContext(ctx, "human queue: load failed", "error", err)
		return nil
	}
	switch {
	case ok:
		conv.AdoptPending(p.Context)
	case p.Context != nil:
		conv = p.Context.Clone()
		conv.ConversationID = p.ConversationID
	default:
		conv = conversation.New(p.ConversationID, agent.TypeHuman)
	}
	if !p.Continuation {
		if last, found := conv.LastUserMessage(); !found || last != p.Message {
			conv.Append(conversation.Message{
				Role:      conversation.RoleUser,
				Content:   p.Message,
				Source:    "customer",
				Timestamp: s.now().UnixMilli(),
			})
		}
	}
	conv.CurrentAgent = agent.TypeHuman
	if err := s.repo.Save(ctx, conv); err != nil {
		slog.ErrorContext(ctx, "human queue: save failed", "error", err)
		return nil
	}
	slog.InfoContext(ctx, "conversation queued for human agent", "messages", conv.Len())

	// Follow-up customer messages are already visible on the hub.
	if p.Continuation {
		s.alert(ctx, conv)
	}
	return nil
}

func (s *HumanQueueService) alert(ctx context.Context, conv *conversation.Context) {
	if len(s.notifiers) == 0 {
		return
	}
	a := notifier.Alert{
		Title:          "Conversation queued for a human agent",
		Message:        conv.HandoffReason,
		Level:          notifier.LevelWarning,
		ConversationID: conv.ConversationID,
		Event:          broadcast.EventHumanQueued,
	}
	if last, ok := conv.LastUserMessage(); ok {
		a.Message = fmt.Sprintf("%s\nLast customer message: %q", conv.HandoffReason, last)
	}

	actx, cancel := context.WithTimeout(ctx, alertTimeout)
	defer cancel()
	for _, n := range s.notifiers {
		if err := n.Send(actx, a); err != nil {
			slog.WarnContext(ctx, "operator alert failed", "notifier", n.Name(), "error", err)
		}
	}
}

// HandleHumanMessage is the agents.human.message handler.
func (s *HumanQueueService) HandleHumanMessage(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.AgentMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode human queue message: %w", err)
	}
	return s.Enqueue(ctx, p)
}
