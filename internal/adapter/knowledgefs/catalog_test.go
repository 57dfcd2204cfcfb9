package knowledgefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDocuments(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "billing", "plans.json"), `{"pro":{"price":49}}`)
	writeFile(t, filepath.Join(root, "billing", "policies.yaml"), "refunds: 30 days\n")
	writeFile(t, filepath.Join(root, "billing", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, "billing", "broken.json"), "{")

	c := New(root)
	docs, err := c.Documents(context.Background(), agent.TypeBilling)
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].Name != "plans" || docs[1].Name != "policies" {
		t.Errorf("names = %q, %q", docs[0].Name, docs[1].Name)
	}
	policies, ok := docs[1].Data.(map[string]any)
	if !ok || policies["refunds"] != "30 days" {
		t.Errorf("policies data = %#v", docs[1].Data)
	}
}

func TestDocumentsEmpty(t *testing.T) {
	c := New(t.TempDir())
	tests := []agent.Type{agent.TypeSales, agent.TypeHuman, agent.Type("unknown")}
	for _, tt := range tests {
		docs, err := c.Documents(context.Background(), tt)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt, err)
		}
		if len(docs) != 0 {
			t.Errorf("%s: got %d docs, want 0", tt, len(docs))
		}
	}
}

func TestDocumentsCachedUntilInvalidated(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "sales", "products.json")
	writeFile(t, path, `{"v":1}`)

	c := New(root)
	ctx := context.Background()
	if _, err := c.Documents(ctx, agent.TypeSales); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, `{"v":2}`)

	docs, _ := c.Documents(ctx, agent.TypeSales)
	if docs[0].Data.(map[string]any)["v"] != float64(1) {
		t.Errorf("expected cached value before invalidation")
	}

	c.Invalidate(agent.TypeSales)
	docs, _ = c.Documents(ctx, agent.TypeSales)
	if docs[0].Data.(map[string]any)["v"] != float64(2) {
		t.Errorf("expected reloaded value after invalidation")
	}
}

func TestWatchInvalidates(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "technical", "troubleshooting.json")
	writeFile(t, path, `{"v":1}`)

	c := New(root)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := c.Documents(ctx, agent.TypeTechnical); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	writeFile(t, path, `{"v":2}`)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		docs, _ := c.Documents(ctx, agent.TypeTechnical)
		if len(docs) == 1 && docs[0].Data.(map[string]any)["v"] == float64(2) {
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch: %v", err)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not invalidate the cache")
}
