package orchestration

import (
	"fmt"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/domain/conversation"
)

// Policy validates requested handoffs.
type Policy struct {
	// LoopWindow is the number of trailing transcript entries inspected.
	LoopWindow int
	// LoopThreshold is the number of handoff transitions within the window
	// that marks the conversation as looping. Zero disables the check.
	LoopThreshold int
}

// DefaultPolicy inspects the last 10 entries and rejects at 3 transitions.
func DefaultPolicy() Policy {
	return Policy{LoopWindow: 10, LoopThreshold: 3}
}

// Check returns an empty string when the handoff is acceptable, otherwise
// the rejection reason.
func (p Policy) Check(from, to agent.Type, ctx *conversation.Context) string {
	if from == to {
		return "Cannot handoff to same agent"
	}
	if p.LoopThreshold > 0 && ctx.RecentHandoffs(p.LoopWindow) >= p.LoopThreshold {
		return "Too many recent handoffs detected - potential loop"
	}
	if ctx != nil && ctx.CurrentAgent == to {
		return fmt.Sprintf("Bouncing between %s and %s agents detected", from, to)
	}
	return ""
}

// Record is the audit entry written for every accepted handoff.
type Record struct {
	ConversationID string     `json:"conversation_id"`
	FromAgent      agent.Type `json:"from_agent"`
	ToAgent        agent.Type `json:"to_agent"`
	Reason         string     `json:"reason"`
	Timestamp      int64      `json:"timestamp"`
}

// Key returns the store key of the record.
func (r Record) Key() string {
	return RecordKey(r.ConversationID, r.Timestamp)
}

// RecordKey returns the store key of an audit record.
func RecordKey(conversationID string, timestamp int64) string {
	return fmt.Sprintf("%s%d", RecordPrefix(conversationID), timestamp)
}

// RecordPrefix is the key prefix shared by the audit records of one
// conversation.
func RecordPrefix(conversationID string) string {
	return "handoff:" + conversationID + ":"
}
