package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	sbotel "github.com/Strob0t/Switchboard/internal/adapter/otel"
	"github.com/Strob0t/Switchboard/internal/domain"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
)

// IngestRequest is an inbound customer message.
type IngestRequest struct {
	CustomerID string `json:"customerId"`
	Message    string `json:"message"`
	SessionID  string `json:"sessionId,omitempty"`
}

// IngestResult acknowledges an accepted message.
type IngestResult struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	Timestamp      int64  `json:"timestamp"`
}

// ValidationError lists the problems of a rejected request.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Details, "; ")
}

// Unwrap makes errors.Is(err, domain.ErrValidation) hold.
func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

// Validate checks the required fields.
func (r IngestRequest) Validate() error {
	var details []string
	if strings.TrimSpace(r.CustomerID) == "" {
		details = append(details, "customerId is required")
	}
	if strings.TrimSpace(r.Message) == "" {
		details = append(details, "message is required")
	}
	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

// IngestService is the entry point of customer messages.
type IngestService struct {
	queue   messagequeue.Queue
	metrics *sbotel.Metrics
	now     func() time.Time
}

// NewIngestService creates an IngestService. metrics may be nil.
func NewIngestService(queue messagequeue.Queue, metrics *sbotel.Metrics) *IngestService {
	return &IngestService{queue: queue, metrics: metrics, now: time.Now}
}

// Ingest validates req and publishes it on messages.received. Without a
// session ID a new conversation is opened.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ts := s.now().UnixMilli()
	conversationID := req.SessionID
	if conversationID == "" {
		conversationID = fmt.Sprintf("conv_%s_%d", req.CustomerID, ts)
	}

	err := publishJSON(ctx, s.queue, messagequeue.SubjectMessageReceived, messagequeue.MessageReceivedPayload{
		ConversationID: conversationID,
		CustomerID:     req.CustomerID,
		MessageID:      uuid.NewString(),
		Message:        req.Message,
		Timestamp:      ts,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Ingested(ctx)
	slog.InfoContext(ctx, "message ingested", "conversation_id", conversationID, "customer_id", req.CustomerID)

	return &IngestResult{
		Message:        "Message received successfully",
		ConversationID: conversationID,
		Timestamp:      ts,
	}, nil
}
