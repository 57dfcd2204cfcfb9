package conversation

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
)

// Delivery statuses.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Receipt confirms one outbound delivery. Receipts expire; transcripts
// do not.
type Receipt struct {
	MessageID      string     `json:"message_id"`
	ConversationID string     `json:"conversation_id"`
	AgentType      agent.Type `json:"agent_type"`
	DeliveredAt    int64      `json:"delivered_at"`
	Status         string     `json:"status"`
}

// ReceiptKey returns the store key of the receipt of one delivered message.
func ReceiptKey(conversationID, messageID string) string {
	return "delivery:" + conversationID + ":" + messageID
}

// NewMessageID names an outbound message sent at unix millisecond ts. The
// random suffix keeps two sends in the same millisecond apart.
func NewMessageID(ts int64) string {
	return fmt.Sprintf("msg_%d_%s", ts, uuid.NewString()[:8])
}
