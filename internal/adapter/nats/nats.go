// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/Switchboard/internal/logger"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
)

const (
	headerRequestID  = "X-Request-ID"
	headerRetryCount = "Retry-Count"
	headerDLQReason  = "DLQ-Reason"

	maxRetries = 3
	retryDelay = 2 * time.Second
)

// Options configures the stream and consumer naming.
type Options struct {
	Stream  string
	Durable string // consumer name prefix; empty means ephemeral consumers
}

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	stream  string
	durable string
}

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string, opts Options) (*Queue, error) {
	nc, err := nats.Connect(url,
		nats.Name("switchboard"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	// Ensure the stream exists with subjects matching our topic patterns.
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     opts.Stream,
		Subjects: messagequeue.StreamSubjects,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", opts.Stream)
	return &Queue{nc: nc, js: js, stream: opts.Stream, durable: opts.Durable}, nil
}

// Publish validates and sends a message to the given subject. The request
// ID of ctx travels as a message header.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject.
// Messages failing validation go straight to <subject>.dlq. Handler errors
// are retried with a delay; after maxRetries the message is dead-lettered.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	cfg := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if q.durable != "" {
		cfg.Durable = consumerName(q.durable, subject)
	}
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, q.stream, cfg)
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

func (q *Queue) handle(msg jetstream.Msg, handler messagequeue.Handler) {
	subject := msg.Subject()
	hctx := context.Background()
	if id := msg.Headers().Get(headerRequestID); id != "" {
		hctx = logger.WithRequestID(hctx, id)
	}

	if err := messagequeue.Validate(subject, msg.Data()); err != nil {
		slog.Error("invalid message", "subject", subject, "error", err)
		q.moveToDLQ(hctx, msg, err)
		return
	}

	if err := handler(hctx, subject, msg.Data()); err != nil {
		attempts := retryCount(msg.Headers())
		if md, mdErr := msg.Metadata(); mdErr == nil {
			if n := int(md.NumDelivered) - 1; n > attempts {
				attempts = n
			}
		}
		slog.Error("message handler failed", "subject", subject, "attempt", attempts+1, "error", err)
		if attempts >= maxRetries {
			q.moveToDLQ(hctx, msg, err)
			return
		}
		if nakErr := msg.NakWithDelay(retryDelay); nakErr != nil {
			slog.Error("nats nak failed", "error", nakErr)
		}
		return
	}
	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("nats ack failed", "error", ackErr)
	}
}

// moveToDLQ republishes msg on <subject>.dlq and acknowledges the original.
func (q *Queue) moveToDLQ(ctx context.Context, msg jetstream.Msg, cause error) {
	dlq := &nats.Msg{Subject: msg.Subject() + ".dlq", Data: msg.Data(), Header: nats.Header{}}
	for k, v := range msg.Headers() {
		dlq.Header[k] = v
	}
	dlq.Header.Set(headerDLQReason, cause.Error())
	if _, err := q.js.PublishMsg(ctx, dlq); err != nil {
		slog.Error("dlq publish failed", "subject", dlq.Subject, "error", err)
		_ = msg.Nak()
		return
	}
	if err := msg.Ack(); err != nil {
		slog.Error("nats ack failed", "error", err)
	}
}

// KeyValue returns the named KV bucket, creating it when absent. A
// positive ttl sets the bucket-wide entry lifetime.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain gracefully drains all subscriptions and closes the connection.
func (q *Queue) Drain() error {
	if err := q.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the underlying connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}

func retryCount(h nats.Header) int {
	n, err := strconv.Atoi(h.Get(headerRetryCount))
	if err != nil {
		return 0
	}
	return n
}

// consumerName derives a durable name; consumer names cannot contain
// subject tokens.
func consumerName(prefix, subject string) string {
	r := strings.NewReplacer(".", "_", "*", "any", ">", "all")
	return prefix + "_" + r.Replace(subject)
}
