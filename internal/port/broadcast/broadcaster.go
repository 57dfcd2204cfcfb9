// Package broadcast defines the port for pushing delivery events to
// connected operator and customer clients.
package broadcast

import (
	"context"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
)

// Event types pushed to clients.
const (
	EventMessageDelivered = "message.delivered"
	EventHumanQueued      = "human.queued"
)

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Scoped is implemented by payloads that belong to one conversation.
// Clients subscribed to a single conversation only receive those.
type Scoped interface {
	Conversation() string
}

// MessageDeliveredEvent carries one outbound reply.
type MessageDeliveredEvent struct {
	ConversationID   string     `json:"conversation_id"`
	MessageID        string     `json:"message_id"`
	AgentType        agent.Type `json:"agent_type"`
	AgentName        string     `json:"agent_name"`
	Message          string     `json:"message"`
	FormattedMessage string     `json:"formatted_message"`
	Timestamp        int64      `json:"timestamp"`
}

// Conversation implements Scoped.
func (e MessageDeliveredEvent) Conversation() string { return e.ConversationID }

// HumanQueuedEvent signals that a conversation waits for a human operator.
type HumanQueuedEvent struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Timestamp      int64  `json:"timestamp"`
}

// Conversation implements Scoped.
func (e HumanQueuedEvent) Conversation() string { return e.ConversationID }
