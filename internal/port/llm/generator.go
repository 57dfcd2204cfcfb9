// Package llm defines the text-generation port used by the classifier and
// the domain agents.
package llm

import (
	"context"
	"errors"
)

// Role tags one message of the history sent to the generator.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged history entry.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion request. System carries the instruction
// text; Messages the role-mapped history in order.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response is the completion returned by a Generator.
type Response struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
}

// ErrEmptyCompletion is returned when a provider answers without any text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Generator produces one completion or fails. Callers treat every error
// the same way.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
