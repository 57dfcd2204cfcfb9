package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
)

// publishJSON marshals payload and publishes it on subject.
func publishJSON(ctx context.Context, q messagequeue.Queue, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	if err := q.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// sendMessage emits a customer-facing reply on messages.send.
func sendMessage(ctx context.Context, q messagequeue.Queue, conversationID, text string, from agent.Type, at time.Time) error {
	return publishJSON(ctx, q, messagequeue.SubjectMessageSend, messagequeue.MessageSendPayload{
		ConversationID: conversationID,
		Message:        text,
		AgentType:      from,
		Timestamp:      at.UnixMilli(),
	})
}

// agentSubject returns the invocation subject of t. The human agent is
// served by the human queue.
func agentSubject(t agent.Type) string {
	if t == agent.TypeHuman {
		return messagequeue.SubjectHumanQueue
	}
	return messagequeue.AgentSubject(t)
}
