// Package statestore defines the key-value port backing conversation
// transcripts, handoff audit records and delivery receipts.
package statestore

import (
	"context"
	"time"
)

// Store is a last-write-wins key-value store. A zero TTL means the entry
// never expires; auxiliary records pass a positive TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}
