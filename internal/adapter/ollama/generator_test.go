package ollama

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/Strob0t/Switchboard/internal/port/llm"
)

type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func TestGenerate(t *testing.T) {
	fake := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "technical",
		GenerationInfo: map[string]any{"PromptTokens": 30, "CompletionTokens": 1},
	}}}}
	g := NewWithModel(fake)

	resp, err := g.Generate(context.Background(), llm.Request{
		Model:       "llama3",
		System:      "Classify.",
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "app crashes"}},
		Temperature: 0.1,
		MaxTokens:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, "technical", resp.Content)
	assert.Equal(t, 30, resp.TokensIn)
	assert.Equal(t, 1, resp.TokensOut)

	require.Len(t, fake.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, fake.messages[1].Role)
	assert.Equal(t, "llama3", fake.opts.Model)
	assert.Equal(t, 10, fake.opts.MaxTokens)
}

func TestGenerateFailures(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := NewWithModel(&fakeModel{err: boom}).Generate(context.Background(), llm.Request{})
	assert.ErrorIs(t, err, boom)

	_, err = NewWithModel(&fakeModel{resp: &llms.ContentResponse{}}).Generate(context.Background(), llm.Request{})
	assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
}
