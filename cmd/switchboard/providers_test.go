package main

import (
	"testing"

	"github.com/Strob0t/Switchboard/internal/config"
	"github.com/Strob0t/Switchboard/internal/domain/agent"
)

func TestAgentProfilesKeepZeroTemperature(t *testing.T) {
	cfg := config.Defaults().Agents
	cfg.Billing.Temperature = 0
	cfg.Sales.MaxTokens = 250

	profiles, err := agentProfiles(cfg)
	if err != nil {
		t.Fatalf("agentProfiles: %v", err)
	}
	byType := make(map[agent.Type]agent.Profile, len(profiles))
	for _, p := range profiles {
		byType[p.Type] = p
	}

	if got := byType[agent.TypeBilling].Temperature; got != 0 {
		t.Errorf("billing temperature = %v, want 0", got)
	}
	if got := byType[agent.TypeSales].MaxTokens; got != 250 {
		t.Errorf("sales max tokens = %d, want 250", got)
	}
	if got := byType[agent.TypeTechnical].Temperature; got != cfg.Technical.Temperature {
		t.Errorf("technical temperature = %v, want %v", got, cfg.Technical.Temperature)
	}
}

func TestAgentProfilesRejectInvalidTunables(t *testing.T) {
	cfg := config.Defaults().Agents
	cfg.Technical.MaxTokens = 0
	if _, err := agentProfiles(cfg); err == nil {
		t.Fatal("expected max_tokens 0 to be rejected")
	}
}
