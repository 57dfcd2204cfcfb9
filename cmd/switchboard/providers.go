package main

// Notifier blank imports: each import registers an operator alert channel.
import (
	_ "github.com/Strob0t/Switchboard/internal/adapter/discord"
	_ "github.com/Strob0t/Switchboard/internal/adapter/slack"
)

import (
	"fmt"

	"github.com/Strob0t/Switchboard/internal/adapter/anthropic"
	"github.com/Strob0t/Switchboard/internal/adapter/guarded"
	"github.com/Strob0t/Switchboard/internal/adapter/litellm"
	"github.com/Strob0t/Switchboard/internal/adapter/ollama"
	"github.com/Strob0t/Switchboard/internal/adapter/openai"
	"github.com/Strob0t/Switchboard/internal/config"
	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/port/llm"
	"github.com/Strob0t/Switchboard/internal/port/notifier"
	"github.com/Strob0t/Switchboard/internal/resilience"
)

// newGenerator builds the configured text-generation provider behind the
// circuit breaker, rate limiter and per-call timeout.
func newGenerator(cfg *config.Config) (llm.Generator, error) {
	var gen llm.Generator
	switch cfg.LLM.Provider {
	case "litellm":
		gen = litellm.NewGenerator(litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey, cfg.LLM.Timeout))
	case "openai":
		gen = openai.New(openai.Config{APIKey: cfg.LLM.OpenAIKey, BaseURL: cfg.LLM.OpenAIBaseURL})
	case "anthropic":
		gen = anthropic.New(cfg.LLM.AnthropicKey)
	case "ollama":
		g, err := ollama.New(cfg.LLM.OllamaURL, cfg.Agents.ClassifierModel, cfg.LLM.Timeout)
		if err != nil {
			return nil, fmt.Errorf("ollama: %w", err)
		}
		gen = g
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	return guarded.New(gen, guarded.Options{
		Breaker:           resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout),
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
		Timeout:           cfg.LLM.Timeout,
	}), nil
}

// agentProfiles applies the configured generation settings to the
// built-in profiles, in domain order. The config defaults carry the
// built-in values, so every field is taken as configured and a
// temperature of 0 stays 0.
func agentProfiles(cfg config.Agents) ([]agent.Profile, error) {
	settings := map[agent.Type]config.Agent{
		agent.TypeSales:     cfg.Sales,
		agent.TypeTechnical: cfg.Technical,
		agent.TypeBilling:   cfg.Billing,
	}
	defaults := agent.DefaultProfiles()

	profiles := make([]agent.Profile, 0, len(defaults))
	for _, d := range agent.Domains() {
		p := defaults[d]
		s := settings[d]
		p.Model = s.Model
		p.Temperature = s.Temperature
		p.MaxTokens = s.MaxTokens
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("agent profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// newNotifiers returns a notifier for every alert channel with a webhook.
func newNotifiers(cfg config.Notify) ([]notifier.Notifier, error) {
	return notifier.FromURLs(map[string]string{
		"slack":   cfg.SlackWebhookURL,
		"discord": cfg.DiscordWebhookURL,
	})
}
