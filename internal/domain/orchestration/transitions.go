package orchestration

import (
	"fmt"
	"strings"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
)

type transitionKey struct{ from, to agent.Type }

var transitions = map[transitionKey]string{
	{agent.TypeSales, agent.TypeTechnical}:   "I'm connecting you with our Technical Support team who can help you with this technical issue. They'll have access to our full conversation history and can assist you right away.",
	{agent.TypeSales, agent.TypeBilling}:     "Let me connect you with our Billing team who specializes in payment and account questions. They'll be able to help you with this billing matter immediately.",
	{agent.TypeTechnical, agent.TypeSales}:   "I'm transferring you to our Sales team who can help you with product information and upgrades. They'll continue from where we left off.",
	{agent.TypeTechnical, agent.TypeBilling}: "I'm connecting you with our Billing department who can assist with this payment-related question. They have access to our conversation and will help you right away.",
	{agent.TypeBilling, agent.TypeSales}:     "Let me connect you with our Sales team who can help you explore our products and features. They'll have full context of our discussion.",
	{agent.TypeBilling, agent.TypeTechnical}: "I'm transferring you to our Technical Support team who can help resolve this technical issue with the billing system. They're ready to assist you.",
}

// Customer-facing texts of the coordinator.
const (
	RejectionMessage = "I apologize for the confusion. Let me get you connected with the right person to help you. Please hold for just a moment."
	EmergencyApology = "I apologize for the technical difficulty. Let me connect you with our sales team who can coordinate getting you the right help."

	// PostReplyReason is the handoff reason used when a reply carried a marker.
	PostReplyReason = "Customer needs assistance from another department"
)

// TransitionMessage returns the text announcing a transfer from -> to.
func TransitionMessage(from, to agent.Type) string {
	if msg, ok := transitions[transitionKey{from, to}]; ok {
		return msg
	}
	return fmt.Sprintf("I'm connecting you with our %s team who can better assist you with this request. They'll have access to our full conversation history.", to.DisplayName())
}

// ContinuationMessage is the text dispatched to the receiving agent.
func ContinuationMessage(from agent.Type, reason string) string {
	return fmt.Sprintf("[HANDOFF FROM %s] Previous agent context: %s", strings.ToUpper(string(from)), reason)
}

// EmergencyMessage is dispatched to sales when coordination fails.
func EmergencyMessage(from, to agent.Type) string {
	return fmt.Sprintf("[EMERGENCY HANDOFF] System error during handoff. Original request: %s → %s", from, to)
}

// EscalationReason is the reason of the human escalation that follows a
// rejected handoff.
func EscalationReason(rejection string) string {
	return "Handoff validation failed: " + rejection
}
