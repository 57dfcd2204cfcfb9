package litellm

import (
	"context"
	"strings"

	"github.com/Strob0t/Switchboard/internal/port/llm"
)

// Generator adapts Client to the llm.Generator port.
type Generator struct {
	client *Client
}

// NewGenerator wraps client.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Generate sends the instruction text as a system message followed by the
// history.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	msgs := make([]ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, ChatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := g.client.ChatCompletion(ctx, ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, llm.ErrEmptyCompletion
	}
	return &llm.Response{
		Content:   resp.Content,
		Model:     resp.Model,
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
	}, nil
}
