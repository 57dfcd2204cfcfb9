package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
)

func TestDefaultTriggersValid(t *testing.T) {
	require.NoError(t, DefaultTriggers().Validate())
}

// Every registered phrase routed to its owning domain must trigger a
// handoff away from that domain.
func TestEveryPhraseTriggersHandoff(t *testing.T) {
	table := DefaultTriggers()
	for domain, triggers := range table {
		for _, tr := range triggers {
			for _, phrase := range tr.Phrases {
				msg := "Hello, " + phrase + " here"
				m, ok := table.Match(domain, msg)
				if containsAny(msg, tr.Unless) != "" {
					continue
				}
				require.Truef(t, ok, "%s: phrase %q did not match", domain, phrase)
				assert.NotEqual(t, domain, m.Target)
				assert.NotEmpty(t, m.Reason)
			}
		}
	}
}

func TestMatchScenarios(t *testing.T) {
	table := DefaultTriggers()
	tests := []struct {
		name    string
		domain  agent.Type
		message string
		want    agent.Type
		matched bool
		reason  string
	}{
		{
			name: "crash goes technical", domain: agent.TypeSales, message: "My app keeps crashing",
			want: agent.TypeTechnical, matched: true,
			reason: `Customer mentioned "crash" - technical issue detected`,
		},
		{
			name: "plan upgrade stays sales", domain: agent.TypeSales, message: "I want to upgrade my plan",
		},
		{
			name: "invoice goes billing", domain: agent.TypeSales, message: "Where is my INVOICE?",
			want: agent.TypeBilling, matched: true,
			reason: `Customer mentioned "invoice" - billing issue detected`,
		},
		{
			name: "billing exclusion on price", domain: agent.TypeSales, message: "what is the price of a refund",
		},
		{
			name: "technical to sales", domain: agent.TypeTechnical, message: "How much is the pro tier?",
			want: agent.TypeSales, matched: true,
			reason: `Customer inquired about "how much" - sales topic detected`,
		},
		{
			name: "billing to technical", domain: agent.TypeBilling, message: "The billing page won't load at all",
			want: agent.TypeTechnical, matched: true,
			reason: `Customer experiencing technical issue: "billing page won't load"`,
		},
		{
			name: "unknown domain", domain: agent.TypeHuman, message: "crash",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := table.Match(tt.domain, tt.message)
			assert.Equal(t, tt.matched, ok)
			if tt.matched {
				assert.Equal(t, tt.want, m.Target)
				assert.Equal(t, tt.reason, m.Reason)
			}
		})
	}
}

func TestValidateRejectsSelfTarget(t *testing.T) {
	table := TriggerTable{
		agent.TypeSales: {{Target: agent.TypeSales, Phrases: []string{"x"}}},
	}
	assert.Error(t, table.Validate())
}

func TestValidateRejectsUpperCasePhrase(t *testing.T) {
	table := TriggerTable{
		agent.TypeSales: {{Target: agent.TypeBilling, Phrases: []string{"Refund"}}},
	}
	assert.Error(t, table.Validate())
}
