package orchestration

import (
	"regexp"
	"strings"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
)

var markerPattern = regexp.MustCompile(`\[HANDOFF:([A-Z]+)\]`)

var markerTargets = map[string]agent.Type{
	"SALES":     agent.TypeSales,
	"TECHNICAL": agent.TypeTechnical,
	"BILLING":   agent.TypeBilling,
	"HUMAN":     agent.TypeHuman,
}

// Marker returns the sentinel a reply embeds to request a handoff to t.
func Marker(t agent.Type) string {
	return "[HANDOFF:" + strings.ToUpper(string(t)) + "]"
}

// MarkersFor lists the markers available to domain, excluding its own.
func MarkersFor(domain agent.Type) []string {
	var out []string
	for _, t := range []agent.Type{agent.TypeSales, agent.TypeTechnical, agent.TypeBilling, agent.TypeHuman} {
		if t != domain {
			out = append(out, Marker(t))
		}
	}
	return out
}

// ParseMarkers strips every recognized marker from reply and returns the
// target of the first one, in text order, that points away from self.
// Unknown tokens are left in place; no marker is the normal case.
func ParseMarkers(reply string, self agent.Type) (string, agent.Type, bool) {
	var (
		target agent.Type
		found  bool
	)
	cleaned := markerPattern.ReplaceAllStringFunc(reply, func(tok string) string {
		name := markerPattern.FindStringSubmatch(tok)[1]
		t, ok := markerTargets[name]
		if !ok {
			return tok
		}
		if !found && t != self {
			target, found = t, true
		}
		return ""
	})
	return strings.TrimSpace(cleaned), target, found
}
