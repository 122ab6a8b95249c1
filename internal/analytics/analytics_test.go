package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/rabbitmq/amqp091-go"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []amqp091.Publishing
	keys     []string
	err      error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, exchange+"/"+key)
	f.messages = append(f.messages, msg)
	return nil
}

func TestAMQP_PublishesQueuedEventsOnClose(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewAMQP(pub, "workaholic.analytics", "events", slog.New(slog.DiscardHandler))

	sink.Log(context.Background(), EventGroupCreated, Params{"group_id": "g1"})
	sink.Log(context.Background(), EventGroupRenamed, nil)
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	sink.Log(context.Background(), EventGroupDeleted, nil) // after Close: dropped

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.messages) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.messages))
	}
	if pub.keys[0] != "workaholic.analytics/events" {
		t.Errorf("routing = %q", pub.keys[0])
	}

	first := pub.messages[0]
	if first.ContentType != "application/json" || first.DeliveryMode != amqp091.Persistent {
		t.Errorf("publishing = %+v", first)
	}
	var msg Message
	if err := json.Unmarshal(first.Body, &msg); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if msg.Event != EventGroupCreated || msg.Params["group_id"] != "g1" {
		t.Errorf("message = %+v", msg)
	}
}

func TestAMQP_PublishFailureIsSwallowed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	pub := &fakePublisher{err: errors.New("channel closed")}

	sink := NewAMQP(pub, "x", "events", logger)
	sink.Log(context.Background(), EventGroupDeleted, nil)
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Failed to publish analytics event") {
		t.Errorf("expected failure to be logged, got %q", buf.String())
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	sink.Log(context.Background(), EventProductsReplaced, Params{"group_id": "g1", "count": 3})

	out := buf.String()
	for _, want := range []string{"event=products_replaced", "group_id=g1", "count=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

type recorder struct {
	events []string
}

func (r *recorder) Log(_ context.Context, event string, _ Params) {
	r.events = append(r.events, event)
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, Nop{}, b}.Log(context.Background(), EventGroupImported, nil)
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events = %v %v", a.events, b.events)
	}
}
