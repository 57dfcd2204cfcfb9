// Package ollama implements the text-generation port against a local
// Ollama server through langchaingo.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/Strob0t/Switchboard/internal/port/llm"
)

// ContentGenerator is the part of llms.Model used by Generator.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Generator implements llm.Generator.
type Generator struct {
	model ContentGenerator
}

// New connects a Generator to the Ollama server at serverURL. defaultModel is
// used when a request does not name one.
func New(serverURL, defaultModel string, timeout time.Duration) (*Generator, error) {
	m, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(defaultModel),
		ollama.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return &Generator{model: m}, nil
}

// NewWithModel wraps an existing content generator.
func NewWithModel(m ContentGenerator) *Generator {
	return &Generator{model: m}
}

// Generate performs a non-streaming completion request.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	content := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == llm.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}

	resp, err := g.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return nil, llm.ErrEmptyCompletion
	}

	choice := resp.Choices[0]
	return &llm.Response{
		Content:   choice.Content,
		Model:     req.Model,
		TokensIn:  intInfo(choice.GenerationInfo, "PromptTokens"),
		TokensOut: intInfo(choice.GenerationInfo, "CompletionTokens"),
	}, nil
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
