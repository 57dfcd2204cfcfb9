package service

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/domain/orchestration"
)

//go:embed templates/*.tmpl
var promptFS embed.FS

// agentTemplates holds one instruction template per domain agent, named
// after the agent type.
var agentTemplates = template.Must(template.ParseFS(promptFS,
	"templates/sales.tmpl", "templates/technical.tmpl", "templates/billing.tmpl"))

// markerUsage says when a reply should carry the marker of each target.
var markerUsage = map[agent.Type]string{
	agent.TypeSales:     "when the customer wants to buy, upgrade or discuss pricing",
	agent.TypeTechnical: "for bugs, errors, setup or integration problems",
	agent.TypeBilling:   "for payments, invoices, charges or refunds",
	agent.TypeHuman:     "when the customer asks for a person or you cannot resolve the request",
}

type promptMarker struct {
	Token string
	When  string
}

type promptData struct {
	Markers   []promptMarker
	Knowledge string
}

// continuationNote is appended to the instructions when a turn starts
// with a handoff note instead of customer input.
const continuationNote = "\n\nYou are taking over this conversation from another team. " +
	"Greet the customer briefly, acknowledge what they asked for and continue helping them. " +
	"Do not repeat the transfer message."

// buildInstructions renders the system prompt of domain with the given
// formatted knowledge.
func buildInstructions(domain agent.Type, knowledgeText string, continuation bool) (string, error) {
	data := promptData{Knowledge: knowledgeText}
	for _, t := range []agent.Type{agent.TypeSales, agent.TypeTechnical, agent.TypeBilling, agent.TypeHuman} {
		if t == domain {
			continue
		}
		data.Markers = append(data.Markers, promptMarker{Token: orchestration.Marker(t), When: markerUsage[t]})
	}
	var buf bytes.Buffer
	if err := agentTemplates.ExecuteTemplate(&buf, string(domain)+".tmpl", data); err != nil {
		return "", fmt.Errorf("render %s instructions: %w", domain, err)
	}
	if continuation {
		buf.WriteString(continuationNote)
	}
	return buf.String(), nil
}
