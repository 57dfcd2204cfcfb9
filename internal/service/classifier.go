package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	sbotel "github.com/Strob0t/Switchboard/internal/adapter/otel"
	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/domain/conversation"
	"github.com/Strob0t/Switchboard/internal/domain/intent"
	"github.com/Strob0t/Switchboard/internal/port/llm"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
)

//go:embed templates/classifier.tmpl
var classifierPrompt string

// ClassifierConfig holds the generation settings of the classifier.
type ClassifierConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ClassifierService assigns an intent to every inbound message and routes
// it to the owning agent. It never writes conversation state.
type ClassifierService struct {
	gen     llm.Generator
	queue   messagequeue.Queue
	repo    *ConversationRepo
	cfg     ClassifierConfig
	metrics *sbotel.Metrics
}

// NewClassifierService creates a ClassifierService. metrics may be nil.
func NewClassifierService(gen llm.Generator, queue messagequeue.Queue, repo *ConversationRepo, cfg ClassifierConfig, metrics *sbotel.Metrics) *ClassifierService {
	return &ClassifierService{gen: gen, queue: queue, repo: repo, cfg: cfg, metrics: metrics}
}

// Classify returns the intent of message. Generation failures yield the
// fallback classification and are not returned.
func (s *ClassifierService) Classify(ctx context.Context, message string) intent.Classification {
	start := time.Now()
	resp, err := s.gen.Generate(ctx, llm.Request{
		Model:       s.cfg.Model,
		System:      classifierPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: message}},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	s.metrics.Generation(ctx, "classify", time.Since(start), err)
	if err != nil {
		slog.WarnContext(ctx, "intent classification failed, defaulting to sales", "error", err)
		return intent.Fallback(err)
	}
	c := intent.Parse(resp.Content)
	if c.Confidence == 0 {
		slog.InfoContext(ctx, "classifier output coerced", "reasoning", c.Reasoning)
	}
	return c
}

// Route classifies p and publishes the agent invocation. Conversations
// already owned by a human stay in the human queue.
func (s *ClassifierService) Route(ctx context.Context, p messagequeue.MessageReceivedPayload) error {
	ctx, span := sbotel.StartClassifySpan(ctx, p.ConversationID)
	defer span.End()

	c := s.Classify(ctx, p.Message)
	s.metrics.Classified(ctx, string(c.Intent))
	target := c.Intent.Agent()

	if s.repo != nil {
		stored, ok, err := s.repo.Load(ctx, p.ConversationID)
		if err != nil {
			slog.WarnContext(ctx, "owner lookup failed", "error", err)
		} else if ok && stored.CurrentAgent == agent.TypeHuman {
			target = agent.TypeHuman
		}
	}

	payload := messagequeue.AgentMessagePayload{
		ConversationID: p.ConversationID,
		AgentType:      target,
		Message:        p.Message,
		Context:        inboundContext(p),
	}
	if err := publishJSON(ctx, s.queue, agentSubject(target), payload); err != nil {
		return err
	}
	slog.InfoContext(ctx, "message routed",
		"intent", string(c.Intent),
		"confidence", c.Confidence,
		"agent", string(target),
	)
	return nil
}

// HandleMessageReceived is the messages.received handler.
func (s *ClassifierService) HandleMessageReceived(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.MessageReceivedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode message received: %w", err)
	}
	return s.Route(ctx, p)
}

// inboundContext is the single-message context carried with a routed
// message. The agent merges it into the stored transcript.
func inboundContext(p messagequeue.MessageReceivedPayload) *conversation.Context {
	id := p.MessageID
	if id == "" {
		id = uuid.NewString()
	}
	c := conversation.New(p.ConversationID, agent.TypeTriage)
	c.Append(conversation.Message{
		ID:        id,
		Role:      conversation.RoleUser,
		Content:   p.Message,
		Source:    p.CustomerID,
		Timestamp: p.Timestamp,
	})
	return c
}
