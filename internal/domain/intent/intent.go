// Package intent holds the closed set of customer intents and the mapping
// from an intent to the agent that owns it.
package intent

import (
	"fmt"
	"strings"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
)

// Intent is the classified purpose of a customer message.
type Intent string

const (
	Sales      Intent = "sales"
	Technical  Intent = "technical"
	Billing    Intent = "billing"
	General    Intent = "general"
	Escalation Intent = "escalation"
)

// Classification is the transient result of classifying one message.
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Parse normalizes raw generator output. Anything outside the
// classifier's output set is coerced to General with zero confidence.
func Parse(raw string) Classification {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch Intent(normalized) {
	case Sales, Technical, Billing, General:
		return Classification{Intent: Intent(normalized), Confidence: 1}
	}
	return Classification{
		Intent:    General,
		Reasoning: fmt.Sprintf("unrecognized classifier output %q", truncate(normalized, 40)),
	}
}

// Fallback is the classification used when the generator fails.
func Fallback(err error) Classification {
	return Classification{Intent: General, Reasoning: "classification failed: " + err.Error()}
}

// Agent returns the agent that owns conversations of this intent.
// Unclassified and escalation intents default to sales.
func (i Intent) Agent() agent.Type {
	switch i {
	case Technical:
		return agent.TypeTechnical
	case Billing:
		return agent.TypeBilling
	}
	return agent.TypeSales
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
