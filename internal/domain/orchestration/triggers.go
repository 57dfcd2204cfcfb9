// Package orchestration contains the routing policy of the support core:
// pre-generation trigger phrases, reply markers, handoff validation and
// the customer-facing transition texts.
package orchestration

import (
	"fmt"
	"strings"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
)

// Trigger forces a handoff to Target when any of Phrases occurs in a
// lower-cased customer message, unless one of Unless also occurs.
type Trigger struct {
	Target  agent.Type `yaml:"target" json:"target"`
	Phrases []string   `yaml:"phrases" json:"phrases"`
	Unless  []string   `yaml:"unless,omitempty" json:"unless,omitempty"`

	// Reason is the handoff reason; "{phrase}" is replaced by the match.
	Reason string `yaml:"reason" json:"reason"`
}

// TriggerTable maps a domain agent to its ordered triggers.
type TriggerTable map[agent.Type][]Trigger

// TriggerMatch is the outcome of a successful pre-check.
type TriggerMatch struct {
	Target agent.Type
	Phrase string
	Reason string
}

// Match scans message against the triggers of domain in declaration order.
func (t TriggerTable) Match(domain agent.Type, message string) (TriggerMatch, bool) {
	lower := strings.ToLower(message)
	for _, tr := range t[domain] {
		if containsAny(lower, tr.Unless) != "" {
			continue
		}
		if phrase := containsAny(lower, tr.Phrases); phrase != "" {
			return TriggerMatch{
				Target: tr.Target,
				Phrase: phrase,
				Reason: strings.ReplaceAll(tr.Reason, "{phrase}", phrase),
			}, true
		}
	}
	return TriggerMatch{}, false
}

// Validate rejects self-targeting triggers and unknown targets.
func (t TriggerTable) Validate() error {
	for domain, triggers := range t {
		if !domain.IsDomain() {
			return fmt.Errorf("triggers: %q is not a domain agent", domain)
		}
		for i, tr := range triggers {
			if !tr.Target.Valid() {
				return fmt.Errorf("triggers: %s[%d]: invalid target %q", domain, i, tr.Target)
			}
			if tr.Target == domain {
				return fmt.Errorf("triggers: %s[%d]: target must differ from the owning agent", domain, i)
			}
			if len(tr.Phrases) == 0 {
				return fmt.Errorf("triggers: %s[%d]: no phrases", domain, i)
			}
			for _, p := range tr.Phrases {
				if strings.TrimSpace(p) == "" || p != strings.ToLower(p) {
					return fmt.Errorf("triggers: %s[%d]: phrase %q must be non-empty lower case", domain, i, p)
				}
			}
		}
	}
	return nil
}

func containsAny(s string, phrases []string) string {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, p) {
			return p
		}
	}
	return ""
}

// DefaultTriggers returns the built-in pre-check table.
func DefaultTriggers() TriggerTable {
	return TriggerTable{
		agent.TypeSales: {
			{
				Target: agent.TypeTechnical,
				Phrases: []string{
					"bug", "error", "not working", "broken", "crash", "slow",
					"setup", "install", "configure", "api", "integration",
					"troubleshoot", "fix", "issue", "problem", "help with", "how to",
				},
				Reason: `Customer mentioned "{phrase}" - technical issue detected`,
			},
			{
				Target: agent.TypeBilling,
				Phrases: []string{
					"bill", "invoice", "payment", "charge", "refund", "cancel",
					"subscription", "cost", "money", "paid", "upgrade billing",
					"downgrade", "proration",
				},
				Unless: []string{"plan", "price"},
				Reason: `Customer mentioned "{phrase}" - billing issue detected`,
			},
		},
		agent.TypeTechnical: {
			{
				Target: agent.TypeSales,
				Phrases: []string{
					"buy", "purchase", "upgrade", "plan", "pricing", "cost", "demo",
					"trial", "features", "compare plans", "which plan", "how much",
				},
				Reason: `Customer inquired about "{phrase}" - sales topic detected`,
			},
			{
				Target: agent.TypeBilling,
				Phrases: []string{
					"bill", "invoice", "payment", "charge", "refund",
					"cancel subscription", "billing issue", "charged twice",
					"credit card", "payment failed",
				},
				Reason: `Customer mentioned "{phrase}" - billing issue detected`,
			},
		},
		agent.TypeBilling: {
			{
				Target: agent.TypeSales,
				Phrases: []string{
					"upgrade features", "add features", "which plan", "compare plans",
					"demo", "more storage", "need more users", "enterprise features",
					"custom plan",
				},
				Reason: `Customer interested in "{phrase}" - sales opportunity detected`,
			},
			{
				Target: agent.TypeTechnical,
				Phrases: []string{
					"billing dashboard not working", "can't update payment",
					"payment system error", "billing page won't load",
					"can't download invoice", "billing system bug",
				},
				Reason: `Customer experiencing technical issue: "{phrase}"`,
			},
		},
	}
}
