// Package knowledge formats per-domain reference documents for inclusion in
// generation instructions.
package knowledge

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Empty is rendered when a domain has no documents.
const Empty = "No specific knowledge base available."

// Document is one named piece of structured reference data.
type Document struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

// Format renders docs as prompt sections in the given order.
func Format(docs []Document) string {
	if len(docs) == 0 {
		return Empty
	}
	sections := make([]string, 0, len(docs))
	for _, d := range docs {
		body, err := json.MarshalIndent(d.Data, "", "  ")
		if err != nil {
			body = []byte(fmt.Sprintf("%v", d.Data))
		}
		sections = append(sections, fmt.Sprintf("## %s KNOWLEDGE:\n%s", strings.ToUpper(d.Name), body))
	}
	return strings.Join(sections, "\n\n")
}

// RankRelevant returns every document, those mentioning more keywords of
// query (words longer than three characters) first. Ties keep their
// original order and nothing is dropped.
func RankRelevant(docs []Document, query string) []Document {
	keywords := keywords(query)
	out := slices.Clone(docs)
	if len(keywords) == 0 {
		return out
	}
	hits := make(map[string]int, len(docs))
	for _, d := range docs {
		body, err := json.Marshal(d.Data)
		if err != nil {
			continue
		}
		haystack := strings.ToLower(d.Name + " " + string(body))
		for _, k := range keywords {
			if strings.Contains(haystack, k) {
				hits[d.Name]++
			}
		}
	}
	slices.SortStableFunc(out, func(a, b Document) int { return hits[b.Name] - hits[a.Name] })
	return out
}

func keywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	var out []string
	for _, f := range fields {
		if len(f) > 3 {
			out = append(out, f)
		}
	}
	return out
}
