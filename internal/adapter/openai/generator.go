// Package openai implements the text-generation port on the OpenAI
// Responses API.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/Strob0t/Switchboard/internal/port/llm"
)

// minOutputTokens is the smallest max_output_tokens the API accepts.
const minOutputTokens = 16

// Config holds client settings.
type Config struct {
	APIKey  string
	BaseURL string
}

// Generator implements llm.Generator.
type Generator struct {
	client *openai.Client
}

// New creates a Generator.
func New(cfg Config, opts ...option.RequestOption) *Generator {
	all := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		all = append(all, option.WithBaseURL(cfg.BaseURL))
	}
	all = append(all, opts...)
	client := openai.NewClient(all...)
	return &Generator{client: &client}
}

// Generate performs a non-streaming completion request.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	input := make(responses.ResponseInputParam, 0, len(req.Messages)+1)
	if req.System != "" {
		input = append(input, responses.ResponseInputItemParamOfMessage(req.System, responses.EasyInputMessageRoleSystem))
	}
	for _, m := range req.Messages {
		role := responses.EasyInputMessageRoleUser
		if m.Role == llm.RoleAssistant {
			role = responses.EasyInputMessageRoleAssistant
		}
		input = append(input, responses.ResponseInputItemParamOfMessage(m.Content, role))
	}

	maxTokens := req.MaxTokens
	if maxTokens < minOutputTokens {
		maxTokens = minOutputTokens
	}

	result, err := g.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           shared.ResponsesModel(req.Model),
		Input:           responses.ResponseNewParamsInputUnion{OfInputItemList: input},
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Temperature:     openai.Float(req.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("openai generate: %w", err)
	}

	text := result.OutputText()
	if strings.TrimSpace(text) == "" {
		return nil, llm.ErrEmptyCompletion
	}
	return &llm.Response{
		Content:   text,
		Model:     string(result.Model),
		TokensIn:  int(result.Usage.InputTokens),
		TokensOut: int(result.Usage.OutputTokens),
	}, nil
}
