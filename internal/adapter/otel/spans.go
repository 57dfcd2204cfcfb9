package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "switchboard"

// StartClassifySpan starts a span for intent classification.
func StartClassifySpan(ctx context.Context, conversationID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "classify",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
}

// StartAgentSpan starts a span for one domain agent turn.
func StartAgentSpan(ctx context.Context, conversationID, agentType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "agent.respond",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("agent.type", agentType),
		),
	)
}

// StartHandoffSpan starts a span for handoff coordination.
func StartHandoffSpan(ctx context.Context, conversationID, from, to string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "handoff.coordinate",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("handoff.from", from),
			attribute.String("handoff.to", to),
		),
	)
}

// StartDeliverySpan starts a span for outbound delivery.
func StartDeliverySpan(ctx context.Context, conversationID, agentType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "delivery",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("agent.type", agentType),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
