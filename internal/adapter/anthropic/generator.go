// Package anthropic implements the text-generation port on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Strob0t/Switchboard/internal/port/llm"
)

// MessagesClient is the subset of the SDK used by Generator. Tests swap it
// for a fake.
type MessagesClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Generator implements llm.Generator.
type Generator struct {
	messages MessagesClient
}

// New creates a Generator backed by the real SDK client.
func New(apiKey string, opts ...option.RequestOption) *Generator {
	all := make([]option.RequestOption, 0, len(opts)+1)
	if apiKey != "" {
		all = append(all, option.WithAPIKey(apiKey))
	}
	all = append(all, opts...)
	client := anthropic.NewClient(all...)
	return &Generator{messages: &client.Messages}
}

// NewWithClient creates a Generator around an existing messages client.
func NewWithClient(messages MessagesClient) *Generator {
	return &Generator{messages: messages}
}

// Generate performs a non-streaming completion request.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == llm.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    msgs,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := g.messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic generate: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, llm.ErrEmptyCompletion
	}
	return &llm.Response{
		Content:   sb.String(),
		Model:     string(message.Model),
		TokensIn:  int(message.Usage.InputTokens),
		TokensOut: int(message.Usage.OutputTokens),
	}, nil
}
