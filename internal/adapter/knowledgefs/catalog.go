// Package knowledgefs serves per-domain knowledge documents from a directory
// tree laid out as <root>/<domain>/<name>.{json,yaml,yml}.
package knowledgefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/domain/knowledge"
)

// Catalog caches the parsed documents of each domain until a file under
// its directory changes.
type Catalog struct {
	root  string
	group singleflight.Group

	mu    sync.RWMutex
	cache map[agent.Type][]knowledge.Document
}

// New creates a Catalog rooted at dir. The directory need not exist.
func New(dir string) *Catalog {
	return &Catalog{root: dir, cache: make(map[agent.Type][]knowledge.Document)}
}

// Documents returns the documents of domain ordered by file name. Unknown
// domains and missing directories yield an empty set.
func (c *Catalog) Documents(_ context.Context, domain agent.Type) ([]knowledge.Document, error) {
	if !domain.IsDomain() {
		return nil, nil
	}

	c.mu.RLock()
	docs, ok := c.cache[domain]
	c.mu.RUnlock()
	if ok {
		return docs, nil
	}

	v, err, _ := c.group.Do(string(domain), func() (any, error) {
		docs, err := c.load(domain)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[domain] = docs
		c.mu.Unlock()
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]knowledge.Document), nil
}

// Invalidate drops the cached documents of domain.
func (c *Catalog) Invalidate(domain agent.Type) {
	c.mu.Lock()
	delete(c.cache, domain)
	c.mu.Unlock()
}

func (c *Catalog) load(domain agent.Type) ([]knowledge.Document, error) {
	dir := filepath.Join(c.root, string(domain))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []knowledge.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read knowledge dir %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	docs := make([]knowledge.Document, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !supported(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := parseFile(path)
		if err != nil {
			slog.Warn("skipping knowledge file", "path", path, "error", err)
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		docs = append(docs, knowledge.Document{Name: name, Data: data})
	}
	return docs, nil
}

func supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func parseFile(path string) (any, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is built from the configured root
	if err != nil {
		return nil, err
	}
	var data any
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &data)
	} else {
		err = yaml.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return data, nil
}

// Watch invalidates cached domains when files under the root change. It
// blocks until ctx is cancelled. A missing root is not an error.
func (c *Catalog) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create knowledge watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	watched := 0
	for _, d := range agent.Domains() {
		dir := filepath.Join(c.root, string(d))
		if err := w.Add(dir); err != nil {
			slog.Debug("knowledge dir not watched", "dir", dir, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		<-ctx.Done()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			domain, err := agent.Parse(filepath.Base(filepath.Dir(ev.Name)))
			if err != nil || !domain.IsDomain() {
				continue
			}
			c.Invalidate(domain)
			slog.Info("knowledge reloaded", "agent", string(domain), "file", filepath.Base(ev.Name))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("knowledge watcher error", "error", err)
		}
	}
}
