// Package statestoretest provides the compliance suite every
// statestore.Store implementation must pass.
package statestoretest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/Switchboard/internal/port/statestore"
)

// RunComplianceTests runs the standard compliance test suite against s.
// Keys use the colon-separated layout of the routing core.
func RunComplianceTests(t *testing.T, s statestore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := s.Set(ctx, "conversation:compliance", []byte(`{"v":1}`), 0); err != nil {
			t.Fatal(err)
		}
		val, found, err := s.Get(ctx, "conversation:compliance")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != `{"v":1}` {
			t.Fatalf("expected {\"v\":1}, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := s.Get(ctx, "conversation:nonexistent")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("SetWithTTL", func(t *testing.T) {
		if err := s.Set(ctx, "handoff:compliance:1700000000000", []byte("audit"), time.Hour); err != nil {
			t.Fatal(err)
		}
		val, found, err := s.Get(ctx, "handoff:compliance:1700000000000")
		if err != nil {
			t.Fatal(err)
		}
		if !found || string(val) != "audit" {
			t.Fatalf("expected audit, got %q (found=%v)", val, found)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = s.Set(ctx, "conversation:del", []byte("del-val"), 0)
		if err := s.Delete(ctx, "conversation:del"); err != nil {
			t.Fatal(err)
		}
		_, found, err := s.Get(ctx, "conversation:del")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := s.Delete(ctx, "conversation:never-existed"); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = s.Set(ctx, "conversation:ow", []byte("v1"), 0)
		_ = s.Set(ctx, "conversation:ow", []byte("v2"), 0)
		val, found, err := s.Get(ctx, "conversation:ow")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})
}
