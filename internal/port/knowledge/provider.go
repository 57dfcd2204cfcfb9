// Package knowledge defines the port for per-domain reference documents.
package knowledge

import (
	"context"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/domain/knowledge"
)

// Provider returns the documents of a domain. An unknown domain yields an
// empty set, not an error.
type Provider interface {
	Documents(ctx context.Context, domain agent.Type) ([]knowledge.Document, error)
}
