package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "switchboard"

// Metrics holds the routing metric instruments. A nil *Metrics records
// nothing, so callers never need to check.
type Metrics struct {
	MessagesIngested   metric.Int64Counter
	IntentsClassified  metric.Int64Counter
	AgentReplies       metric.Int64Counter
	AgentFailures      metric.Int64Counter
	HandoffsAccepted   metric.Int64Counter
	HandoffsRejected   metric.Int64Counter
	EmergencyFallbacks metric.Int64Counter
	Deliveries         metric.Int64Counter
	GenerationDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.MessagesIngested, "switchboard.messages.ingested", "Inbound customer messages accepted"},
		{&m.IntentsClassified, "switchboard.intents.classified", "Messages classified, by intent"},
		{&m.AgentReplies, "switchboard.agent.replies", "Replies produced by domain agents"},
		{&m.AgentFailures, "switchboard.agent.failures", "Agent turns that fell back to an apology"},
		{&m.HandoffsAccepted, "switchboard.handoffs.accepted", "Handoffs that passed validation"},
		{&m.HandoffsRejected, "switchboard.handoffs.rejected", "Handoffs rejected by validation"},
		{&m.EmergencyFallbacks, "switchboard.handoffs.emergency", "Emergency handoffs to sales"},
		{&m.Deliveries, "switchboard.deliveries", "Outbound deliveries, by status"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}

	m.GenerationDuration, err = meter.Float64Histogram("switchboard.generation.duration_seconds",
		metric.WithDescription("Text generation latency in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Ingested counts one accepted inbound message.
func (m *Metrics) Ingested(ctx context.Context) {
	if m == nil {
		return
	}
	m.MessagesIngested.Add(ctx, 1)
}

// Classified counts one classification result.
func (m *Metrics) Classified(ctx context.Context, intent string) {
	if m == nil {
		return
	}
	m.IntentsClassified.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", intent)))
}

// Replied counts one agent reply.
func (m *Metrics) Replied(ctx context.Context, agentType string) {
	if m == nil {
		return
	}
	m.AgentReplies.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agentType)))
}

// Failed counts one failed agent turn.
func (m *Metrics) Failed(ctx context.Context, agentType string) {
	if m == nil {
		return
	}
	m.AgentFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agentType)))
}

// Handoff counts one coordinated handoff.
func (m *Metrics) Handoff(ctx context.Context, from, to string, accepted bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("from", from), attribute.String("to", to))
	if accepted {
		m.HandoffsAccepted.Add(ctx, 1, attrs)
		return
	}
	m.HandoffsRejected.Add(ctx, 1, attrs)
}

// Emergency counts one emergency fallback.
func (m *Metrics) Emergency(ctx context.Context) {
	if m == nil {
		return
	}
	m.EmergencyFallbacks.Add(ctx, 1)
}

// Delivered counts one delivery attempt.
func (m *Metrics) Delivered(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.Deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// Generation records one generation call.
func (m *Metrics) Generation(ctx context.Context, purpose string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.GenerationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("purpose", purpose),
		attribute.Bool("error", err != nil),
	))
}
