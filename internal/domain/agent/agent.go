// Package agent defines the support roles that can own a conversation
// and the per-domain tunables of the response-generating agents.
package agent

import "fmt"

// Type identifies a support role.
type Type string

const (
	TypeSales     Type = "sales"
	TypeTechnical Type = "technical"
	TypeBilling   Type = "billing"
	TypeTriage    Type = "triage"
	TypeHuman     Type = "human"

	// TypeSystem is a synthetic sender used for emergency messages. It never
	// owns a conversation.
	TypeSystem Type = "system"
)

// Domains returns the response-generating agents in routing order.
func Domains() []Type {
	return []Type{TypeSales, TypeTechnical, TypeBilling}
}

// Valid reports whether t can own a conversation.
func (t Type) Valid() bool {
	switch t {
	case TypeSales, TypeTechnical, TypeBilling, TypeTriage, TypeHuman:
		return true
	}
	return false
}

// IsDomain reports whether t is one of the generating domain agents.
func (t Type) IsDomain() bool {
	switch t {
	case TypeSales, TypeTechnical, TypeBilling:
		return true
	}
	return false
}

// Source is the transcript source identifier for messages written by t.
func (t Type) Source() string {
	return string(t) + "-agent"
}

// DisplayName is the customer-facing team name.
func (t Type) DisplayName() string {
	switch t {
	case TypeSales:
		return "Sales"
	case TypeTechnical:
		return "Technical Support"
	case TypeBilling:
		return "Billing"
	case TypeHuman:
		return "Human Agent"
	case TypeSystem:
		return "System"
	case TypeTriage:
		return "Triage"
	}
	return string(t)
}

// Parse converts s into a Type, rejecting unknown roles.
func Parse(s string) (Type, error) {
	t := Type(s)
	if t.Valid() || t == TypeSystem {
		return t, nil
	}
	return "", fmt.Errorf("unknown agent type %q", s)
}
