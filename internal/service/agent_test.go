package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/Switchboard/internal/adapter/knowledgefs"
	"github.com/Strob0t/Switchboard/internal/adapter/memstore"
	"github.com/Strob0t/Switchboard/internal/domain/agent"
	"github.com/Strob0t/Switchboard/internal/domain/conversation"
	"github.com/Strob0t/Switchboard/internal/domain/knowledge"
	"github.com/Strob0t/Switchboard/internal/domain/orchestration"
	"github.com/Strob0t/Switchboard/internal/port/llm"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
	"github.com/Strob0t/Switchboard/internal/port/statestore"
)

type agentFixture struct {
	svc   *AgentService
	gen   *mockGenerator
	queue *mockQueue
	repo  *ConversationRepo
}

func newAgentFixture(t *testing.T, domain agent.Type, gen *mockGenerator, store statestore.Store) *agentFixture {
	t.Helper()
	if store == nil {
		store = memstore.New()
	}
	q := &mockQueue{}
	repo := NewConversationRepo(store)
	svc := NewAgentService(agent.DefaultProfiles()[domain], AgentDeps{
		Generator: gen,
		Knowledge: mockKnowledge{
			agent.TypeSales: {{Name: "products", Data: map[string]any{"pro": "$49 per month"}}},
		},
		Repo:  repo,
		Queue: q,
		Now:   fixedClock(1_700_000_000_000),
	})
	return &agentFixture{svc: svc, gen: gen, queue: q, repo: repo}
}

func customerMessage(conversationID string, to agent.Type, text string) messagequeue.AgentMessagePayload {
	return messagequeue.AgentMessagePayload{
		ConversationID: conversationID,
		AgentType:      to,
		Message:        text,
		Context: inboundContext(messagequeue.MessageReceivedPayload{
			ConversationID: conversationID,
			CustomerID:     "cust-1",
			MessageID:      "m1",
			Message:        text,
			Timestamp:      1_700_000_000_000,
		}),
	}
}

func TestAgentRepliesAndPersists(t *testing.T) {
	f := newAgentFixture(t, agent.TypeSales, replyWith("Our Pro plan is $49 per month."), nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Respond(ctx, customerMessage("c1", agent.TypeSales, "What does the pro plan include?")))

	conv, err := f.repo.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, conversation.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "m1", conv.Messages[0].ID)
	assert.Equal(t, conversation.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "sales-agent", conv.Messages[1].Source)
	assert.Equal(t, "Our Pro plan is $49 per month.", conv.Messages[1].Content)
	assert.Equal(t, agent.TypeSales, conv.CurrentAgent)

	sent := decodeAll[messagequeue.MessageSendPayload](t, f.queue, messagequeue.SubjectMessageSend)
	require.Len(t, sent, 1)
	assert.Equal(t, agent.TypeSales, sent[0].AgentType)
	assert.Equal(t, "Our Pro plan is $49 per month.", sent[0].Message)
	assert.Empty(t, f.queue.on(messagequeue.SubjectHandoffRequest))

	req := f.gen.calls()[0]
	assert.Contains(t, req.System, "## PRODUCTS KNOWLEDGE:")
	assert.Contains(t, req.System, "[HANDOFF:TECHNICAL]")
	assert.NotContains(t, req.System, "[HANDOFF:SALES]")
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 500, req.MaxTokens)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "What does the pro plan include?"}}, req.Messages)
}

func TestAgentWithoutKnowledgeUsesPlaceholder(t *testing.T) {
	f := newAgentFixture(t, agent.TypeBilling, replyWith("Your next invoice is due on the 1st."), nil)

	require.NoError(t, f.svc.Respond(context.Background(), customerMessage("c1", agent.TypeBilling, "When is my next invoice due?")))

	assert.Contains(t, f.gen.calls()[0].System, knowledge.Empty)
}

func TestAgentLoadsWholeDomainKnowledge(t *testing.T) {
	gen := replyWith("I would suggest our Pro plan.")
	q := &mockQueue{}
	svc := NewAgentService(agent.DefaultProfiles()[agent.TypeSales], AgentDeps{
		Generator: gen,
		Knowledge: knowledgefs.New("../../knowledge"),
		Repo:      NewConversationRepo(memstore.New()),
		Queue:     q,
		Now:       fixedClock(1_700_000_000_000),
	})

	require.NoError(t, svc.Respond(context.Background(), customerMessage("c1", agent.TypeSales, "Which one would you recommend for us?")))

	system := gen.calls()[0].System
	assert.Contains(t, system, "## PRODUCTS KNOWLEDGE:")
	assert.Contains(t, system, "## SCRIPTS KNOWLEDGE:")
}

func TestAgentTriggerPhraseHandsOffWithoutReply(t *testing.T) {
	f := newAgentFixture(t, agent.TypeSales, replyWith("unused"), nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Respond(ctx, customerMessage("c1", agent.TypeSales, "I found a bug when logging in")))

	assert.Empty(t, f.gen.calls(), "generation must be skipped")
	assert.Empty(t, f.queue.on(messagequeue.SubjectMessageSend))

	reqs := decodeAll[messagequeue.HandoffRequestPayload](t, f.queue, messagequeue.SubjectHandoffRequest)
	require.Len(t, reqs, 1)
	assert.Equal(t, agent.TypeSales, reqs[0].FromAgent)
	assert.Equal(t, agent.TypeTechnical, reqs[0].ToAgent)
	assert.Equal(t, `Customer mentioned "bug" - technical issue detected`, reqs[0].Reason)
	require.NotNil(t, reqs[0].Context)
	assert.Equal(t, 1, reqs[0].Context.Len())

	_, ok, err := f.repo.Load(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok, "pre-check must not write the transcript")
}

func TestAgentMarkerHandsOffAfterReply(t *testing.T) {
	f := newAgentFixture(t, agent.TypeTechnical, replyWith("Happy to look into it. [HANDOFF:BILLING]"), nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Respond(ctx, customerMessage("c1", agent.TypeTechnical, "My dashboard shows a blank page")))

	assert.Equal(t, []string{messagequeue.SubjectMessageSend, messagequeue.SubjectHandoffRequest}, f.queue.subjects(),
		"reply must be delivered before the handoff request")

	sent := decodeAll[messagequeue.MessageSendPayload](t, f.queue, messagequeue.SubjectMessageSend)
	assert.Equal(t, "Happy to look into it.", sent[0].Message)

	reqs := decodeAll[messagequeue.HandoffRequestPayload](t, f.queue, messagequeue.SubjectHandoffRequest)
	assert.Equal(t, agent.TypeBilling, reqs[0].ToAgent)
	assert.Equal(t, orchestration.PostReplyReason, reqs[0].Reason)
	assert.Equal(t, 2, reqs[0].Context.Len())

	conv, err := f.repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Happy to look into it.", conv.Messages[1].Content)
}

func TestAgentMarkerOnlyReplySkipsDelivery(t *testing.T) {
	f := newAgentFixture(t, agent.TypeTechnical, replyWith("[HANDOFF:HUMAN]"), nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Respond(ctx, customerMessage("c1", agent.TypeTechnical, "Let me talk to someone")))

	assert.Empty(t, f.queue.on(messagequeue.SubjectMessageSend))
	reqs := decodeAll[messagequeue.HandoffRequestPayload](t, f.queue, messagequeue.SubjectHandoffRequest)
	require.Len(t, reqs, 1)
	assert.Equal(t, agent.TypeHuman, reqs[0].ToAgent)

	conv, err := f.repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, conv.Len())
}

func TestAgentOwnMarkerIsIgnored(t *testing.T) {
	f := newAgentFixture(t, agent.TypeBilling, replyWith("[HANDOFF:BILLING] Your refund is on its way."), nil)

	require.NoError(t, f.svc.Respond(context.Background(), customerMessage("c1", agent.TypeBilling, "Where is my money back?")))

	sent := decodeAll[messagequeue.MessageSendPayload](t, f.queue, messagequeue.SubjectMessageSend)
	require.Len(t, sent, 1)
	assert.Equal(t, "Your refund is on its way.", sent[0].Message)
	assert.Empty(t, f.queue.on(messagequeue.SubjectHandoffRequest))
}

func TestAgentGenerationFailureFallsBack(t *testing.T) {
	tests := []struct {
		domain   agent.Type
		fallback agent.Type
		reason   string
		message  string
	}{
		{agent.TypeSales, agent.TypeTechnical, "Sales agent encountered an error", "Tell me about your company"},
		{agent.TypeTechnical, agent.TypeSales, "Technical Support agent encountered an error", "My screen is blank"},
		{agent.TypeBilling, agent.TypeSales, "Billing agent encountered an error", "When is my next invoice due?"},
	}
	for _, tt := range tests {
		t.Run(string(tt.domain), func(t *testing.T) {
			f := newAgentFixture(t, tt.domain, failWith(errBoom), nil)

			require.NoError(t, f.svc.Respond(context.Background(), customerMessage("c1", tt.domain, tt.message)))

			sent := decodeAll[messagequeue.MessageSendPayload](t, f.queue, messagequeue.SubjectMessageSend)
			require.Len(t, sent, 1)
			assert.Equal(t, agent.DefaultProfiles()[tt.domain].FallbackMessage, sent[0].Message)
			assert.Equal(t, tt.domain, sent[0].AgentType)

			reqs := decodeAll[messagequeue.HandoffRequestPayload](t, f.queue, messagequeue.SubjectHandoffRequest)
			require.Len(t, reqs, 1)
			assert.Equal(t, tt.fallback, reqs[0].ToAgent)
			assert.Equal(t, tt.reason, reqs[0].Reason)
		})
	}
}

func TestAgentStoreFailureFallsBack(t *testing.T) {
	store := &failingStore{Store: memstore.New(), getErr: errBoom}
	f := newAgentFixture(t, agent.TypeSales, replyWith("unused"), store)

	require.NoError(t, f.svc.Respond(context.Background(), customerMessage("c1", agent.TypeSales, "Hello there")))

	assert.Empty(t, f.gen.calls())
	assert.Equal(t, []string{messagequeue.SubjectMessageSend, messagequeue.SubjectHandoffRequest}, f.queue.subjects())
}

func TestAgentEmergencyFailureOnlyApologizes(t *testing.T) {
	f := newAgentFixture(t, agent.TypeSales, failWith(errBoom), nil)
	p := customerMessage("c1", agent.TypeSales, orchestration.EmergencyMessage(agent.TypeSales, agent.TypeBilling))
	p.Continuation = true
	p.Emergency = true

	require.NoError(t, f.svc.Respond(context.Background(), p))

	assert.Equal(t, []string{messagequeue.SubjectMessageSend}, f.queue.subjects())
}

func TestAgentContinuationSkipsTriggers(t *testing.T) {
	f := newAgentFixture(t, agent.TypeTechnical, replyWith("Hi, I'm from technical support. Let's get that demo environment working."), nil)
	ctx := context.Background()

	conv := conversation.New("c1", agent.TypeTechnical)
	conv.Append(conversation.Message{ID: "m1", Role: conversation.RoleUser, Content: "The demo crashes on start", Source: "cust-1", Timestamp: 1})
	conv.Append(conversation.Message{ID: "t1", Role: conversation.RoleAssistant, Content: "Connecting you", Source: conversation.SourceCoordinator, Timestamp: 2, HandoffTransition: true})
	require.NoError(t, f.repo.Save(ctx, conv))

	note := orchestration.ContinuationMessage(agent.TypeSales, `Customer mentioned "crash" - technical issue detected`)
	require.NoError(t, f.svc.Respond(ctx, messagequeue.AgentMessagePayload{
		ConversationID: "c1",
		AgentType:      agent.TypeTechnical,
		Message:        note + " demo",
		Context:        conv.Clone(),
		Continuation:   true,
	}))

	assert.Empty(t, f.queue.on(messagequeue.SubjectHandoffRequest))
	calls := f.gen.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].System, "taking over this conversation")
	require.Len(t, calls[0].Messages, 3)
	assert.Equal(t, llm.RoleAssistant, calls[0].Messages[1].Role)
	assert.Equal(t, note+" demo", calls[0].Messages[2].Content)

	stored, err := f.repo.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 3, stored.Len(), "the note is not part of the transcript")
	assert.Equal(t, "technical-agent", stored.Messages[2].Source)
}

func TestAgentMergesStoredTranscript(t *testing.T) {
	f := newAgentFixture(t, agent.TypeBilling, replyWith("I've issued the refund."), nil)
	ctx := context.Background()

	conv := conversation.New("c1", agent.TypeBilling)
	conv.Append(conversation.Message{ID: "m0", Role: conversation.RoleUser, Content: "Why was I charged twice?", Timestamp: 1})
	conv.Append(conversation.Message{ID: "a0", Role: conversation.RoleAssistant, Content: "Let me check.", Source: "billing-agent", Timestamp: 2})
	require.NoError(t, f.repo.Save(ctx, conv))

	require.NoError(t, f.svc.Respond(ctx, customerMessage("c1", agent.TypeBilling, "Please send it back to my card")))

	stored, err := f.repo.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 4, stored.Len())
	assert.Equal(t, "Please send it back to my card", stored.Messages[2].Content)
	assert.Equal(t, "I've issued the refund.", stored.Messages[3].Content)
	assert.Len(t, f.gen.calls()[0].Messages, 3)
}
