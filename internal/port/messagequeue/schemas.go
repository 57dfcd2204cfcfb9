package messagequeue

import (
	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/domain/conversation"
)

// MessageReceivedPayload is the schema for messages.received messages.
type MessageReceivedPayload struct {
	ConversationID string `json:"conversation_id"`
	CustomerID     string `json:"customer_id"`
	MessageID      string `json:"message_id,omitempty"`
	Message        string `json:"message"`
	Timestamp      int64  `json:"timestamp"`
}

// AgentMessagePayload is the schema for agents.{type}.message messages.
type AgentMessagePayload struct {
	ConversationID string                `json:"conversation_id"`
	AgentType      agent.Type            `json:"agent_type"`
	Message        string                `json:"message"`
	Context        *conversation.Context `json:"context"`

	// Continuation marks re-dispatches after a handoff. The message text
	// is then a coordinator note rather than customer input.
	Continuation bool `json:"continuation,omitempty"`

	// Emergency marks the coordinator's last-resort dispatch. An agent
	// failing on it apologizes without requesting another handoff.
	Emergency bool `json:"emergency,omitempty"`
}

// HandoffRequestPayload is the schema for handoffs.request messages.
type HandoffRequestPayload struct {
	ConversationID string                `json:"conversation_id"`
	FromAgent      agent.Type            `json:"from_agent"`
	ToAgent        agent.Type            `json:"to_agent"`
	Reason         string                `json:"reason"`
	Context        *conversation.Context `json:"context"`

	// Escalation marks the human escalation that follows a rejected
	// handoff. It is exempt from loop detection.
	Escalation bool `json:"escalation,omitempty"`
}

// MessageSendPayload is the schema for messages.send messages.
type MessageSendPayload struct {
	ConversationID string     `json:"conversation_id"`
	Message        string     `json:"message"`
	AgentType      agent.Type `json:"agent_type"`
	Timestamp      int64      `json:"timestamp"`
}

// DeliveryStatus values reported on customers.message.* subjects.
const (
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
)

// DeliveryPayload is the schema for customers.message.delivered and
// customers.message.failed messages.
type DeliveryPayload struct {
	ConversationID   string     `json:"conversation_id"`
	MessageID        string     `json:"message_id,omitempty"`
	FormattedMessage string     `json:"formatted_message,omitempty"`
	AgentType        agent.Type `json:"agent_type"`
	Status           string     `json:"status"`
	Error            string     `json:"error,omitempty"`
	Timestamp        int64      `json:"timestamp"`
}
