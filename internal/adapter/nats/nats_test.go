package nats

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/Switchboard/internal/logger"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
)

const testStream = "SWITCHBOARD_TEST"

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Queue {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	q, err := Connect(context.Background(), url, Options{Stream: testStream})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := q.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return q
}

// uniqueSubject returns a test subject under the "customers." prefix, which
// the stream captures and the validator accepts as any valid JSON.
func uniqueSubject(t *testing.T) string {
	t.Helper()
	return "customers.test." + t.Name()
}

func TestConsumerName(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{"messages.received", "sb_messages_received"},
		{"agents.*.message", "sb_agents_any_message"},
		{"agents.>", "sb_agents_all"},
	}
	for _, tt := range tests {
		if got := consumerName("sb", tt.subject); got != tt.want {
			t.Errorf("consumerName(%q) = %q, want %q", tt.subject, got, tt.want)
		}
	}
}

func TestRetryCount(t *testing.T) {
	h := nats.Header{}
	if got := retryCount(h); got != 0 {
		t.Errorf("empty header: got %d", got)
	}
	h.Set(headerRetryCount, "2")
	if got := retryCount(h); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
	h.Set(headerRetryCount, "x")
	if got := retryCount(h); got != 0 {
		t.Errorf("garbage header: got %d", got)
	}
}

type delivery struct {
	subject string
	data    []byte
	reqID   string
}

// collect subscribes to subject and forwards every delivery to the returned
// channel. handlerErr is returned to the queue for each message.
func collect(t *testing.T, q *Queue, subject string, handlerErr error) <-chan delivery {
	t.Helper()
	out := make(chan delivery, 8)
	stop, err := q.Subscribe(context.Background(), subject, func(ctx context.Context, subj string, data []byte) error {
		select {
		case out <- delivery{subject: subj, data: data, reqID: logger.RequestID(ctx)}:
		default:
		}
		return handlerErr
	})
	if err != nil {
		t.Fatalf("Subscribe %s: %v", subject, err)
	}
	t.Cleanup(stop)
	return out
}

func await[T any](t *testing.T, ch <-chan T, within time.Duration) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		var zero T
		t.Fatalf("nothing received within %s", within)
		return zero
	}
}

func TestQueue_DeliversWithRequestID(t *testing.T) {
	q := testConnect(t)
	subject := uniqueSubject(t)
	got := collect(t, q, subject, nil)

	body, _ := json.Marshal(messagequeue.MessageSendPayload{ConversationID: "conv_1", Message: "Your refund is on its way"})
	ctx := logger.WithRequestID(context.Background(), "req-abc-123")
	if err := q.Publish(ctx, subject, body); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	d := await(t, got, 5*time.Second)
	if d.subject != subject {
		t.Errorf("subject = %q, want %q", d.subject, subject)
	}
	if string(d.data) != string(body) {
		t.Errorf("data = %s, want %s", d.data, body)
	}
	if d.reqID != "req-abc-123" {
		t.Errorf("request ID = %q", d.reqID)
	}
}

func TestQueue_PublishRejectsInvalidPayload(t *testing.T) {
	q := testConnect(t)
	err := q.Publish(context.Background(), messagequeue.SubjectHandoffRequest, []byte(`{"conversation_id":""}`))
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestQueue_ExhaustedRetriesAreDeadLettered(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()
	subject := uniqueSubject(t)

	// Read the dead letter with a raw consumer so it bypasses Queue.Subscribe.
	dlq, err := q.js.CreateOrUpdateConsumer(ctx, testStream, jetstream.ConsumerConfig{
		FilterSubject: subject + ".dlq",
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		t.Fatalf("create DLQ consumer: %v", err)
	}
	dead := make(chan jetstream.Msg, 1)
	cc, err := dlq.Consume(func(m jetstream.Msg) {
		_ = m.Ack()
		select {
		case dead <- m:
		default:
		}
	})
	if err != nil {
		t.Fatalf("consume DLQ: %v", err)
	}
	defer cc.Stop()

	collect(t, q, subject, errors.New("agent unavailable"))

	msg := nats.NewMsg(subject)
	msg.Data = []byte(`{"conversation_id":"conv_dead"}`)
	msg.Header.Set(headerRetryCount, strconv.Itoa(maxRetries))
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		t.Fatalf("PublishMsg: %v", err)
	}

	m := await(t, dead, 10*time.Second)
	if string(m.Data()) != `{"conversation_id":"conv_dead"}` {
		t.Errorf("DLQ data = %s", m.Data())
	}
	if reason := m.Headers().Get(headerDLQReason); reason == "" {
		t.Error("expected dead-letter reason header")
	}
}

func TestQueue_KeyValueBucket(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()

	kv, err := q.KeyValue(ctx, "test-kv-receipts", 30*time.Second)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}
	if _, err := kv.Put(ctx, "receipt.conv_1.1700000000000", []byte(`{"status":"delivered"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, err := kv.Get(ctx, "receipt.conv_1.1700000000000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(e.Value()) != `{"status":"delivered"}` {
		t.Errorf("value = %s", e.Value())
	}
	if !q.IsConnected() {
		t.Error("IsConnected() = false while connected")
	}
}
