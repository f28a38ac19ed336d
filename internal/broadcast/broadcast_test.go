package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/streadway/amqp"

	"github.com/spotevents/spot/internal/application"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func checkedIn(eventID string) application.Notification {
	return application.Notification{
		Type:       application.NotificationTicketCheckedIn,
		EventID:    eventID,
		Payload:    map[string]any{"ticketId": "ticket-1"},
		OccurredAt: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
	}
}

type recordingBroadcaster struct {
	got []application.Notification
	err error
}

func (r *recordingBroadcaster) Publish(_ context.Context, n application.Notification) error {
	r.got = append(r.got, n)
	return r.err
}

func TestMultiPublishesToEveryTarget(t *testing.T) {
	t.Parallel()

	failure := errors.New("bus down")
	first := &recordingBroadcaster{err: failure}
	second := &recordingBroadcaster{}
	err := Multi{first, nil, second}.Publish(context.Background(), checkedIn("event-1"))
	if !errors.Is(err, failure) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(first.got) != 1 || len(second.got) != 1 {
		t.Fatalf("every target must receive the notification: %d, %d", len(first.got), len(second.got))
	}
}

type fakeChannel struct {
	mu         sync.Mutex
	declared   string
	kind       string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	closed     bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.declared, c.kind = name, kind
	return nil
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, exchange+"/"+key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestAMQPPublisher(t *testing.T) {
	t.Parallel()

	channel := &fakeChannel{}
	publisher, err := NewAMQPPublisher(channel, "", quietLogger())
	if err != nil {
		t.Fatalf("NewAMQPPublisher: %v", err)
	}
	if channel.declared != "spot.events" || channel.kind != amqp.ExchangeTopic {
		t.Fatalf("unexpected exchange %q (%s)", channel.declared, channel.kind)
	}

	if err := publisher.Publish(context.Background(), checkedIn("event-9")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(channel.published) != 1 || channel.keys[0] != "spot.events/ticket.checked_in" {
		t.Fatalf("unexpected publishes %v", channel.keys)
	}
	msg := channel.published[0]
	if msg.ContentType != "application/json" || msg.DeliveryMode != amqp.Persistent || msg.Headers["eventId"] != "event-9" {
		t.Fatalf("unexpected message properties %#v", msg)
	}
	var decoded application.Notification
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.EventID != "event-9" || decoded.Payload["ticketId"] != "ticket-1" {
		t.Fatalf("unexpected body %#v", decoded)
	}

	channel.publishErr = amqp.ErrClosed
	if err := publisher.Publish(context.Background(), checkedIn("event-9")); !errors.Is(err, amqp.ErrClosed) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
	if err := publisher.Close(); err != nil || !channel.closed {
		t.Fatalf("Close: %v (closed=%v)", err, channel.closed)
	}
}

func dialHub(t *testing.T, hub *Hub, eventID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, eventID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversPerEvent(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, quietLogger())
	listener := dialHub(t, hub, "event-1")
	waitFor(t, func() bool { return hub.Subscribers("event-1") == 1 })

	if err := hub.Publish(context.Background(), checkedIn("event-2")); err != nil {
		t.Fatalf("Publish other event: %v", err)
	}
	if err := hub.Publish(context.Background(), checkedIn("event-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	_ = listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got application.Notification
	if err := listener.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.EventID != "event-1" || got.Type != application.NotificationTicketCheckedIn {
		t.Fatalf("unexpected notification %#v", got)
	}
}

func TestHubUnsubscribesOnDisconnect(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, quietLogger())
	listener := dialHub(t, hub, "event-3")
	waitFor(t, func() bool { return hub.Subscribers("event-3") == 1 })

	_ = listener.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	listener.Close()
	waitFor(t, func() bool { return hub.Subscribers("event-3") == 0 })
}

func TestHubDropsForSlowListeners(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, quietLogger())
	sub := hub.subscribe("event-4")
	for i := 0; i < subscriberSize+5; i++ {
		if err := hub.Publish(context.Background(), checkedIn("event-4")); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if got := len(sub.send); got != subscriberSize {
		t.Fatalf("expected buffer to cap at %d, got %d", subscriberSize, got)
	}
	hub.unsubscribe("event-4", sub)
	if hub.Subscribers("event-4") != 0 {
		t.Fatal("expected no subscribers after unsubscribe")
	}
}
