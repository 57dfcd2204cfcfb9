// Package conversation defines the persisted transcript of one customer
// conversation. A transcript only grows: messages are appended, never
// removed or rewritten.
package conversation

import (
	"github.com/Strob0t/Switchboard/internal/domain/agent"
)

// Role is the speaker role of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// SourceCoordinator attributes transition messages written by the handoff
// coordinator.
const SourceCoordinator = "handoff-coordinator"

// Message is one transcript entry. Timestamps are unix milliseconds.
type Message struct {
	ID        string `json:"id,omitempty"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"`

	// HandoffTransition marks entries written as part of an accepted
	// handoff. Loop detection counts only these.
	HandoffTransition bool `json:"handoff_transition,omitempty"`
}

// Context is the unit of persisted state per conversation.
type Context struct {
	ConversationID string     `json:"conversation_id"`
	Messages       []Message  `json:"messages"`
	CurrentAgent   agent.Type `json:"current_agent"`
	HandoffReason  string     `json:"handoff_reason,omitempty"`
}

// KeyPrefix starts every conversation record key.
const KeyPrefix = "conversation:"

// Key returns the store key of a conversation record.
func Key(conversationID string) string {
	return KeyPrefix + conversationID
}

// New returns an empty context owned by owner.
func New(conversationID string, owner agent.Type) *Context {
	return &Context{
		ConversationID: conversationID,
		Messages:       []Message{},
		CurrentAgent:   owner,
	}
}

// Clone returns a deep copy of c. A nil receiver yields nil.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}

// Append adds m to the end of the transcript. A timestamp earlier than the
// last entry is raised to it so the transcript stays non-decreasing.
func (c *Context) Append(m Message) {
	if n := len(c.Messages); n > 0 {
		if last := c.Messages[n-1].Timestamp; m.Timestamp < last {
			m.Timestamp = last
		}
	}
	c.Messages = append(c.Messages, m)
}

// Len returns the number of transcript entries.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Messages)
}

// RecentHandoffs counts handoff-tagged entries among the last window
// entries of the transcript.
func (c *Context) RecentHandoffs(window int) int {
	if c == nil || window <= 0 {
		return 0
	}
	start := len(c.Messages) - window
	if start < 0 {
		start = 0
	}
	n := 0
	for _, m := range c.Messages[start:] {
		if m.HandoffTransition {
			n++
		}
	}
	return n
}

// AdoptPending appends entries of other that c does not contain yet, in
// their original order, and returns how many were added. It reconciles a
// snapshot carried on an event with the stored record.
func (c *Context) AdoptPending(other *Context) int {
	if other == nil {
		return 0
	}
	seen := make(map[string]struct{}, len(c.Messages))
	for _, m := range c.Messages {
		seen[identity(m)] = struct{}{}
	}
	added := 0
	for _, m := range other.Messages {
		id := identity(m)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		c.Append(m)
		added++
	}
	return added
}

// LastUserMessage returns the content of the most recent user entry.
func (c *Context) LastUserMessage() (string, bool) {
	if c == nil {
		return "", false
	}
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i].Content, true
		}
	}
	return "", false
}

func identity(m Message) string {
	if m.ID != "" {
		return "id:" + m.ID
	}
	return string(m.Role) + "|" + m.Source + "|" + m.Content
}
