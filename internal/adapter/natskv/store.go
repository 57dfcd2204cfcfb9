// Package natskv implements the state store port on NATS JetStream KV.
//
// Records without a TTL live in a primary bucket that never expires.
// Records with a TTL go to one of a fixed set of expiring buckets whose
// bucket-level lifetime is the smallest one covering the requested TTL.
package natskv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// BucketOpener returns a KV bucket, creating it with the given TTL when
// absent. The NATS queue adapter satisfies it.
type BucketOpener interface {
	KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error)
}

type tier struct {
	ttl time.Duration
	kv  jetstream.KeyValue
}

// Store is a statestore.Store backed by JetStream KV buckets.
type Store struct {
	primary jetstream.KeyValue
	tiers   []tier // ascending ttl
}

// Open creates or binds the primary bucket and one expiring bucket per
// distinct entry of ttls.
func Open(ctx context.Context, opener BucketOpener, bucket string, ttls ...time.Duration) (*Store, error) {
	primary, err := opener.KeyValue(ctx, bucket, 0)
	if err != nil {
		return nil, err
	}
	s := &Store{primary: primary}

	seen := map[time.Duration]bool{}
	for _, ttl := range ttls {
		if ttl <= 0 || seen[ttl] {
			continue
		}
		seen[ttl] = true
		name := bucket + "_ttl_" + strconv.FormatInt(int64(ttl/time.Second), 10)
		kv, err := opener.KeyValue(ctx, name, ttl)
		if err != nil {
			return nil, err
		}
		s.tiers = append(s.tiers, tier{ttl: ttl, kv: kv})
	}
	sort.Slice(s.tiers, func(i, j int) bool { return s.tiers[i].ttl < s.tiers[j].ttl })
	return s, nil
}

// Get looks the key up in the primary bucket, then in the expiring ones.
func (s *Store) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	k := encodeKey(key)
	for _, kv := range s.buckets() {
		entry, err := kv.Get(ctx, k)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, false, fmt.Errorf("natskv get %s: %w", key, err)
		}
		return entry.Value(), true, nil
	}
	return nil, false, nil
}

// Set stores value. A positive ttl selects the expiring bucket whose
// lifetime is the smallest one not shorter than ttl, or the longest one.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if _, err := s.bucketFor(ttl).Put(ctx, encodeKey(key), value); err != nil {
		return fmt.Errorf("natskv put %s: %w", key, err)
	}
	return nil
}

// Delete removes the key from every bucket.
func (s *Store) Delete(ctx context.Context, key string) error {
	k := encodeKey(key)
	for _, kv := range s.buckets() {
		if err := kv.Delete(ctx, k); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("natskv delete %s: %w", key, err)
		}
	}
	return nil
}

func (s *Store) buckets() []jetstream.KeyValue {
	out := make([]jetstream.KeyValue, 0, len(s.tiers)+1)
	out = append(out, s.primary)
	for _, t := range s.tiers {
		out = append(out, t.kv)
	}
	return out
}

func (s *Store) bucketFor(ttl time.Duration) jetstream.KeyValue {
	if ttl <= 0 || len(s.tiers) == 0 {
		return s.primary
	}
	for _, t := range s.tiers {
		if t.ttl >= ttl {
			return t.kv
		}
	}
	return s.tiers[len(s.tiers)-1].kv
}

// encodeKey maps a colon-separated store key onto the KV key alphabet.
// Each segment is base64url encoded so arbitrary conversation IDs survive.
func encodeKey(key string) string {
	parts := strings.Split(key, ":")
	for i, p := range parts {
		parts[i] = base64.RawURLEncoding.EncodeToString([]byte(p))
	}
	return strings.Join(parts, ".")
}

// decodeKey reverses encodeKey.
func decodeKey(encoded string) (string, error) {
	parts := strings.Split(encoded, ".")
	for i, p := range parts {
		b, err := base64.RawURLEncoding.DecodeString(p)
		if err != nil {
			return "", fmt.Errorf("natskv decode key %q: %w", encoded, err)
		}
		parts[i] = string(b)
	}
	return strings.Join(parts, ":"), nil
}

// Keys lists the keys of the primary bucket starting with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	lister, err := s.primary.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("natskv list: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	var out []string
	for k := range lister.Keys() {
		key, err := decodeKey(k)
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}
