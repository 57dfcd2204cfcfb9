package notifier

import (
	"fmt"
	"net/url"
	"slices"
	"sync"
)

// Factory builds a Notifier that posts to webhookURL.
type Factory func(webhookURL string) (Notifier, error)

var registry = struct {
	sync.RWMutex
	byName map[string]Factory
}{byName: make(map[string]Factory)}

// Register adds an alert channel under name. Adapters call it from init;
// registering a name twice panics.
func Register(name string, f Factory) {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byName[name]; dup {
		panic(fmt.Sprintf("notifier: %q registered twice", name))
	}
	registry.byName[name] = f
}

// New builds the named notifier after checking webhookURL is an absolute
// http(s) URL.
func New(name, webhookURL string) (Notifier, error) {
	registry.RLock()
	f, ok := registry.byName[name]
	registry.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notifier: unknown channel %q", name)
	}

	u, err := url.Parse(webhookURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("notifier %s: invalid webhook URL", name)
	}
	return f(webhookURL)
}

// FromURLs builds one notifier per channel with a non-empty URL, in name
// order. Channels that are not registered are an error.
func FromURLs(urls map[string]string) ([]Notifier, error) {
	names := make([]string, 0, len(urls))
	for name, u := range urls {
		if u != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	out := make([]Notifier, 0, len(names))
	for _, name := range names {
		n, err := New(name, urls[name])
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Available returns the registered channel names, sorted.
func Available() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.byName))
	for name := range registry.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
