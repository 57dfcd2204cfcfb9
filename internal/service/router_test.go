package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/Switchboard/internal/adapter/memqueue"
	"github.com/Strob0t/Switchboard/internal/adapter/memstore"
	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/domain/conversation"
	"github.com/Strob0t/Switchboard/internal/domain/orchestration"
	"github.com/Strob0t/Switchboard/internal/port/broadcast"
	"github.com/Strob0t/Switchboard/internal/port/llm"
)

type pipeline struct {
	ingest *IngestService
	repo   *ConversationRepo
	hub    *mockBroadcaster
}

// newPipeline wires the routing core on an in-process bus. classify
// answers classifier calls; reply answers per agent.
func newPipeline(t *testing.T, classify string, reply map[agent.Type]string) *pipeline {
	t.Helper()
	q := memqueue.New(time.Millisecond)
	repo := NewConversationRepo(memstore.New())
	hub := &mockBroadcaster{}
	dispatch := NewDispatcher()

	gen := &mockGenerator{reply: func(req llm.Request) (string, error) {
		if req.System == classifierPrompt {
			return classify, nil
		}
		for domain, text := range reply {
			if req.Temperature == agent.DefaultProfiles()[domain].Temperature {
				return text, nil
			}
		}
		return "", errBoom
	}}

	deps := AgentDeps{Generator: gen, Knowledge: mockKnowledge{}, Repo: repo, Queue: q}
	var agents []*AgentService
	for _, p := range agent.DefaultProfiles() {
		agents = append(agents, NewAgentService(p, deps))
	}

	cancel, err := Subscribe(context.Background(), q, NewSequencer(), Handlers{
		Classifier: NewClassifierService(gen, q, repo, ClassifierConfig{MaxTokens: 10}, nil),
		Agents:     agents,
		Coordinator: NewCoordinatorService(repo, q, dispatch, CoordinatorConfig{
			Policy:          orchestration.DefaultPolicy(),
			HandoffDelay:    10 * time.Millisecond,
			EscalationDelay: 10 * time.Millisecond,
			AuditTTL:        time.Hour,
		}, nil),
		Deliver: NewDeliverService(repo, hub, q, time.Hour, nil),
		Human:   NewHumanQueueService(repo, hub),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = dispatch.Close(context.Background())
		_ = q.Drain()
		cancel()
	})
	return &pipeline{ingest: NewIngestService(q, nil), repo: repo, hub: hub}
}

func (p *pipeline) formatted() []string {
	var out []string
	for _, ev := range p.hub.all() {
		if d, ok := ev.payload.(broadcast.MessageDeliveredEvent); ok {
			out = append(out, d.FormattedMessage)
		}
	}
	return out
}

func TestPipelineDirectReply(t *testing.T) {
	p := newPipeline(t, "technical", map[agent.Type]string{agent.TypeTechnical: "Try clearing your cache."})
	ctx := context.Background()

	res, err := p.ingest.Ingest(ctx, IngestRequest{CustomerID: "cust-1", Message: "My screen stays blank after login", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", res.ConversationID)

	require.Eventually(t, func() bool { return len(p.formatted()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Technical Support: Try clearing your cache."}, p.formatted())

	require.Eventually(t, func() bool {
		conv, err := p.repo.Get(ctx, "s1")
		return err == nil && conv.Len() == 2
	}, 2*time.Second, 5*time.Millisecond)
	conv, err := p.repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, agent.TypeTechnical, conv.CurrentAgent)
	assert.Equal(t, "technical-agent", conv.Messages[1].Source)
}

func TestPipelineHandoffBetweenAgents(t *testing.T) {
	p := newPipeline(t, "sales", map[agent.Type]string{agent.TypeTechnical: "Let's fix that error together."})
	ctx := context.Background()

	_, err := p.ingest.Ingest(ctx, IngestRequest{CustomerID: "cust-1", Message: "I want to upgrade but keep getting an error", SessionID: "s2"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		conv, err := p.repo.Get(ctx, "s2")
		return err == nil && conv.Len() == 3
	}, 2*time.Second, 5*time.Millisecond)

	conv, err := p.repo.Get(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, conversation.RoleUser, conv.Messages[0].Role)
	assert.True(t, conv.Messages[1].HandoffTransition)
	assert.Equal(t, "technical-agent", conv.Messages[2].Source)
	assert.Equal(t, agent.TypeTechnical, conv.CurrentAgent)
	assert.Equal(t, `Customer mentioned "error" - technical issue detected`, conv.HandoffReason)

	records, err := p.repo.Handoffs(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, agent.TypeSales, records[0].FromAgent)

	require.Eventually(t, func() bool { return len(p.formatted()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{
		"Sales: " + orchestration.TransitionMessage(agent.TypeSales, agent.TypeTechnical),
		"Technical Support: Let's fix that error together.",
	}, p.formatted())
}

func TestPipelineConcurrentIngestsKeepOrderedTranscript(t *testing.T) {
	const n = 8
	p := newPipeline(t, "technical", map[agent.Type]string{agent.TypeTechnical: "Try clearing your cache."})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ingest.Ingest(ctx, IngestRequest{CustomerID: "cust-1", Message: fmt.Sprintf("Screen blank, attempt %d", i), SessionID: "s3"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		conv, err := p.repo.Get(ctx, "s3")
		return err == nil && conv.Len() == 2*n
	}, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(p.formatted()) == n }, 2*time.Second, 5*time.Millisecond)

	conv, err := p.repo.Get(ctx, "s3")
	require.NoError(t, err)
	var users, replies int
	for i, m := range conv.Messages {
		switch m.Role {
		case conversation.RoleUser:
			users++
		case conversation.RoleAssistant:
			replies++
		}
		if i > 0 {
			assert.GreaterOrEqual(t, m.Timestamp, conv.Messages[i-1].Timestamp, "entry %d goes back in time", i)
		}
	}
	assert.Equal(t, n, users)
	assert.Equal(t, n, replies)
}
