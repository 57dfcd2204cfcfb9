package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Strob0t/Switchboard/internal/domain"
	"github.com/Strob0t/Switchboard/internal/domain/conversation"
	"github.com/Strob0t/Switchboard/internal/domain/orchestration"
	"github.com/Strob0t/Switchboard/internal/port/statestore"
)

// ErrListUnsupported is returned when the configured store cannot
// enumerate keys.
var ErrListUnsupported = errors.New("store does not support listing")

// ConversationRepo reads and writes the JSON records of the routing core:
// transcripts (no expiry), handoff audit records and delivery receipts.
type ConversationRepo struct {
	store statestore.Store
}

// NewConversationRepo creates a ConversationRepo on store.
func NewConversationRepo(store statestore.Store) *ConversationRepo {
	return &ConversationRepo{store: store}
}

// Load returns the stored context of conversationID, or false when none
// exists.
func (r *ConversationRepo) Load(ctx context.Context, conversationID string) (*conversation.Context, bool, error) {
	var c conversation.Context
	ok, err := r.get(ctx, conversation.Key(conversationID), &c)
	if err != nil || !ok {
		return nil, false, err
	}
	if c.Messages == nil {
		c.Messages = []conversation.Message{}
	}
	return &c, true, nil
}

// Get is Load with domain.ErrNotFound for a missing conversation.
func (r *ConversationRepo) Get(ctx context.Context, conversationID string) (*conversation.Context, error) {
	c, ok, err := r.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	return c, nil
}

// Save writes c without expiry.
func (r *ConversationRepo) Save(ctx context.Context, c *conversation.Context) error {
	return r.set(ctx, conversation.Key(c.ConversationID), c, 0)
}

// SaveHandoff writes an audit record with the given ttl.
func (r *ConversationRepo) SaveHandoff(ctx context.Context, rec orchestration.Record, ttl time.Duration) error {
	return r.set(ctx, rec.Key(), rec, ttl)
}

// Handoff returns the audit record written at timestamp.
func (r *ConversationRepo) Handoff(ctx context.Context, conversationID string, timestamp int64) (*orchestration.Record, error) {
	var rec orchestration.Record
	ok, err := r.get(ctx, orchestration.RecordKey(conversationID, timestamp), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("handoff %s@%d: %w", conversationID, timestamp, domain.ErrNotFound)
	}
	return &rec, nil
}

// Handoffs returns the live audit records of conversationID, oldest first.
func (r *ConversationRepo) Handoffs(ctx context.Context, conversationID string) ([]orchestration.Record, error) {
	keys, err := r.keys(ctx, orchestration.RecordPrefix(conversationID))
	if err != nil {
		return nil, err
	}
	out := make([]orchestration.Record, 0, len(keys))
	for _, k := range keys {
		var rec orchestration.Record
		ok, err := r.get(ctx, k, &rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// SaveReceipt writes a delivery receipt keyed by its message ID.
func (r *ConversationRepo) SaveReceipt(ctx context.Context, rec conversation.Receipt, ttl time.Duration) error {
	return r.set(ctx, conversation.ReceiptKey(rec.ConversationID, rec.MessageID), rec, ttl)
}

// Receipt returns the receipt of one delivered message.
func (r *ConversationRepo) Receipt(ctx context.Context, conversationID, messageID string) (*conversation.Receipt, error) {
	var rec conversation.Receipt
	ok, err := r.get(ctx, conversation.ReceiptKey(conversationID, messageID), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("receipt %s/%s: %w", conversationID, messageID, domain.ErrNotFound)
	}
	return &rec, nil
}

// List returns the IDs of all stored conversations in lexical order.
func (r *ConversationRepo) List(ctx context.Context) ([]string, error) {
	keys, err := r.keys(ctx, conversation.Key(""))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, conversation.Key("")))
	}
	return ids, nil
}

func (r *ConversationRepo) keys(ctx context.Context, prefix string) ([]string, error) {
	lister, ok := r.store.(statestore.Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	keys, err := lister.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s*: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *ConversationRepo) get(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *ConversationRepo) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, raw, ttl); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
