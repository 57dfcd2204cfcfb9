package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Strob0t/Switchboard/internal/adapter/memstore"
	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/domain/knowledge"
	"github.com/Strob0t/Switchboard/internal/port/broadcast"
	knowledgeport "github.com/Strob0t/Switchboard/internal/port/knowledge"
	"github.com/Strob0t/Switchboard/internal/port/llm"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
	"github.com/Strob0t/Switchboard/internal/port/statestore"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ messagequeue.Queue     = (*mockQueue)(nil)
	_ llm.Generator          = (*mockGenerator)(nil)
	_ broadcast.Broadcaster  = (*mockBroadcaster)(nil)
	_ knowledgeport.Provider = (mockKnowledge)(nil)
	_ statestore.Store       = (*failingStore)(nil)
)

var errBoom = errors.New("boom")

type publishedMsg struct {
	subject string
	data    []byte
}

// mockQueue records publishes in order and never delivers them.
type mockQueue struct {
	mu        sync.Mutex
	published []publishedMsg
	failOn    map[string]error
}

func (m *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[subject]; err != nil {
		return err
	}
	m.published = append(m.published, publishedMsg{subject, append([]byte(nil), data...)})
	return nil
}

func (m *mockQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (m *mockQueue) Drain() error      { return nil }
func (m *mockQueue) Close() error      { return nil }
func (m *mockQueue) IsConnected() bool { return true }

func (m *mockQueue) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.published))
	for i, p := range m.published {
		out[i] = p.subject
	}
	return out
}

func (m *mockQueue) on(subject string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]byte
	for _, p := range m.published {
		if p.subject == subject {
			out = append(out, p.data)
		}
	}
	return out
}

// decodeAll unmarshals every payload published on subject.
func decodeAll[T any](t *testing.T, q *mockQueue, subject string) []T {
	t.Helper()
	var out []T
	for _, raw := range q.on(subject) {
		var v T
		require.NoError(t, json.Unmarshal(raw, &v))
		out = append(out, v)
	}
	return out
}

// mockGenerator answers with reply/err and records every request.
type mockGenerator struct {
	mu       sync.Mutex
	reply    func(req llm.Request) (string, error)
	requests []llm.Request
}

func replyWith(text string) *mockGenerator {
	return &mockGenerator{reply: func(llm.Request) (string, error) { return text, nil }}
}

func failWith(err error) *mockGenerator {
	return &mockGenerator{reply: func(llm.Request) (string, error) { return "", err }}
}

func (m *mockGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	text, err := m.reply(req)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Content: text, Model: req.Model}, nil
}

func (m *mockGenerator) calls() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

type broadcastEvent struct {
	eventType string
	payload   any
}

type mockBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (m *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, broadcastEvent{eventType, payload})
}

func (m *mockBroadcaster) all() []broadcastEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]broadcastEvent(nil), m.events...)
}

type mockKnowledge map[agent.Type][]knowledge.Document

func (m mockKnowledge) Documents(_ context.Context, domain agent.Type) ([]knowledge.Document, error) {
	return m[domain], nil
}

// failingStore wraps a memstore and fails reads or writes on demand.
type failingStore struct {
	*memstore.Store
	getErr error
	setErr error
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.Store.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.Set(ctx, key, value, ttl)
}

// fixedClock returns a clock that advances one millisecond per call.
func fixedClock(start int64) func() time.Time {
	var mu sync.Mutex
	ms := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ms++
		return time.UnixMilli(ms)
	}
}
