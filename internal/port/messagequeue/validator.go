package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	var (
		target any
		check  func() error
	)
	switch {
	case subject == SubjectMessageReceived:
		p := &MessageReceivedPayload{}
		target, check = p, func() error { return require(p.ConversationID, "conversation_id", p.Message, "message") }
	case subject == SubjectHandoffRequest:
		p := &HandoffRequestPayload{}
		target, check = p, func() error {
			return require(p.ConversationID, "conversation_id", string(p.FromAgent), "from_agent", string(p.ToAgent), "to_agent")
		}
	case subject == SubjectMessageSend:
		p := &MessageSendPayload{}
		target, check = p, func() error { return require(p.ConversationID, "conversation_id", string(p.AgentType), "agent_type") }
	case subject == SubjectMessageDelivered, subject == SubjectMessageFailed:
		target = &DeliveryPayload{}
	case strings.HasPrefix(subject, SubjectAgentPrefix+"."):
		p := &AgentMessagePayload{}
		target, check = p, func() error { return require(p.ConversationID, "conversation_id") }
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if check != nil {
		if err := check(); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
	}
	return nil
}

// require takes (value, name) pairs and reports the first empty value.
func require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i] == "" {
			return errors.New(pairs[i+1] + " is required")
		}
	}
	return nil
}
