package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Strob0t/Switchboard/internal/logger"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
)

// Handlers are the bus consumers of the routing core.
type Handlers struct {
	Classifier  *ClassifierService
	Agents      []*AgentService
	Coordinator *CoordinatorService
	Deliver     *DeliverService
	Human       *HumanQueueService
}

// Subscribe registers every handler on q. Handlers for the same
// conversation run one at a time through seq. The returned function
// cancels all subscriptions.
func Subscribe(ctx context.Context, q messagequeue.Queue, seq *Sequencer, h Handlers) (func(), error) {
	routes := map[string]messagequeue.Handler{
		messagequeue.SubjectMessageReceived: h.Classifier.HandleMessageReceived,
		messagequeue.SubjectHandoffRequest:  h.Coordinator.HandleHandoffRequest,
		messagequeue.SubjectMessageSend:     h.Deliver.HandleMessageSend,
		messagequeue.SubjectHumanQueue:      h.Human.HandleHumanMessage,
	}
	for _, a := range h.Agents {
		routes[messagequeue.AgentSubject(a.Type())] = a.HandleAgentMessage
	}

	var cancels []func()
	cancelAll := func() {
		for _, c := range cancels {
			c()
		}
	}
	for subject, handler := range routes {
		cancel, err := q.Subscribe(ctx, subject, sequenced(seq, handler))
		if err != nil {
			cancelAll()
			return nil, fmt.Errorf("subscribe %s: %w", subject, err)
		}
		cancels = append(cancels, cancel)
		slog.Debug("subscribed", "subject", subject)
	}
	return cancelAll, nil
}

// sequenced runs h under the lock of the payload's conversation.
func sequenced(seq *Sequencer, h messagequeue.Handler) messagequeue.Handler {
	return func(ctx context.Context, subject string, data []byte) error {
		var key struct {
			ConversationID string `json:"conversation_id"`
		}
		if err := json.Unmarshal(data, &key); err != nil {
			return fmt.Errorf("decode %s: %w", subject, err)
		}
		if key.ConversationID == "" {
			return h(ctx, subject, data)
		}
		ctx = logger.WithConversationID(ctx, key.ConversationID)
		return seq.Do(key.ConversationID, func() error {
			return h(ctx, subject, data)
		})
	}
}
