// Package notifier defines the operator alert port. Alerts go to staff
// channels when a conversation needs a human, never to customers.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier has no destination.
var ErrNotConfigured = errors.New("notifier: not configured")

// Level grades an alert.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelUrgent  Level = "urgent"
)

// Alert is the payload sent through a Notifier.
type Alert struct {
	Title          string `json:"title"`
	Message        string `json:"message"`
	Level          Level  `json:"level"`
	ConversationID string `json:"conversation_id,omitempty"`
	Event          string `json:"event,omitempty"` // e.g. "human.queued"
}

// Notifier delivers operator alerts to one channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}
