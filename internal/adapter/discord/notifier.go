// Package discord posts operator alerts to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/Switchboard/internal/port/notifier"
)

const (
	providerName = "discord"
	sendTimeout  = 5 * time.Second
)

func init() {
	notifier.Register(providerName, func(webhookURL string) (notifier.Notifier, error) {
		return NewNotifier(webhookURL), nil
	})
}

// Notifier sends alerts via a Discord webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a Discord notifier with the given webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: sendTimeout},
	}
}

func (n *Notifier) Name() string { return providerName }

type discordWebhook struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func (n *Notifier) Send(ctx context.Context, alert notifier.Alert) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	embed := discordEmbed{
		Title:       alert.Title,
		Description: alert.Message,
		Color:       levelColor(alert.Level),
	}
	if alert.ConversationID != "" {
		embed.Fields = append(embed.Fields, discordField{Name: "Conversation", Value: alert.ConversationID, Inline: true})
	}
	if alert.Event != "" {
		embed.Fields = append(embed.Fields, discordField{Name: "Event", Value: alert.Event, Inline: true})
	}

	body, err := json.Marshal(discordWebhook{Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("discord marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Discord answers 204 on success.
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord API %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func levelColor(level notifier.Level) int {
	switch level {
	case notifier.LevelUrgent:
		return 0xE74C3C // red
	case notifier.LevelWarning:
		return 0xF39C12 // orange
	default:
		return 0x3498DB // blue
	}
}
