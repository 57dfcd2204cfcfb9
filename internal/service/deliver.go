package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sbotel "github.com/Strob0t/Switchboard/internal/adapter/otel"
	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/domain/conversation"
	"github.com/Strob0t/Switchboard/internal/port/broadcast"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
)

// DeliverService pushes outbound replies to connected clients and records
// a receipt per message. The transcript is owned by the agents and is not
// touched here.
type DeliverService struct {
	repo       *ConversationRepo
	hub        broadcast.Broadcaster
	queue      messagequeue.Queue
	receiptTTL time.Duration
	metrics    *sbotel.Metrics
	now        func() time.Time
}

// NewDeliverService creates a DeliverService. metrics may be nil.
func NewDeliverService(repo *ConversationRepo, hub broadcast.Broadcaster, queue messagequeue.Queue, receiptTTL time.Duration, metrics *sbotel.Metrics) *DeliverService {
	return &DeliverService{
		repo:       repo,
		hub:        hub,
		queue:      queue,
		receiptTTL: receiptTTL,
		metrics:    metrics,
		now:        time.Now,
	}
}

// FormatMessage prefixes text with the team name of the sender.
func FormatMessage(from agent.Type, text string) string {
	return from.DisplayName() + ": " + text
}

// Deliver broadcasts one reply and reports the outcome on
// customers.message.delivered or customers.message.failed.
func (s *DeliverService) Deliver(ctx context.Context, p messagequeue.MessageSendPayload) error {
	ctx, span := sbotel.StartDeliverySpan(ctx, p.ConversationID, string(p.AgentType))
	messageID := conversation.NewMessageID(p.Timestamp)
	formatted := FormatMessage(p.AgentType, p.Message)
	deliveredAt := s.now().UnixMilli()

	s.hub.BroadcastEvent(ctx, broadcast.EventMessageDelivered, broadcast.MessageDeliveredEvent{
		ConversationID:   p.ConversationID,
		MessageID:        messageID,
		AgentType:        p.AgentType,
		AgentName:        p.AgentType.DisplayName(),
		Message:          p.Message,
		FormattedMessage: formatted,
		Timestamp:        p.Timestamp,
	})

	err := s.repo.SaveReceipt(ctx, conversation.Receipt{
		MessageID:      messageID,
		ConversationID: p.ConversationID,
		AgentType:      p.AgentType,
		DeliveredAt:    deliveredAt,
		Status:         conversation.StatusDelivered,
	}, s.receiptTTL)
	sbotel.EndSpan(span, err)

	report := messagequeue.DeliveryPayload{
		ConversationID:   p.ConversationID,
		MessageID:        messageID,
		FormattedMessage: formatted,
		AgentType:        p.AgentType,
		Status:           messagequeue.DeliveryStatusDelivered,
		Timestamp:        deliveredAt,
	}
	subject := messagequeue.SubjectMessageDelivered
	if err != nil {
		slog.ErrorContext(ctx, "delivery receipt failed", "agent", string(p.AgentType), "error", err)
		report.Status = messagequeue.DeliveryStatusFailed
		report.Error = err.Error()
		subject = messagequeue.SubjectMessageFailed
	}
	s.metrics.Delivered(ctx, report.Status)

	if err := publishJSON(ctx, s.queue, subject, report); err != nil {
		slog.ErrorContext(ctx, "delivery report failed", "subject", subject, "error", err)
	}
	return nil
}

// HandleMessageSend is the messages.send handler.
func (s *DeliverService) HandleMessageSend(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.MessageSendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode message send: %w", err)
	}
	return s.Deliver(ctx, p)
}
