// Package messagequeue defines the message queue port (interface).
package messagequeue

import (
	"context"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
)

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// A handler error requests redelivery. The returned function cancels
	// the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	// Pending messages are processed; no new messages are accepted.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for the routing core.
const (
	SubjectMessageReceived  = "messages.received" // ingestion → classifier
	SubjectMessageSend      = "messages.send"     // agents/coordinator → delivery
	SubjectHandoffRequest   = "handoffs.request"  // agents → coordinator
	SubjectAgentPrefix      = "agents"            // agents.{type}.message
	SubjectHumanQueue       = "agents.human.message"
	SubjectMessageDelivered = "customers.message.delivered"
	SubjectMessageFailed    = "customers.message.failed"
)

// StreamSubjects are the wildcard subjects persisted by the event stream.
var StreamSubjects = []string{"messages.>", "agents.>", "handoffs.>", "customers.>"}

// AgentSubject returns the invocation subject of agent t.
func AgentSubject(t agent.Type) string {
	return SubjectAgentPrefix + "." + string(t) + ".message"
}
