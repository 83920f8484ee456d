package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"nostrcore/internal/nostr"
	"nostrcore/internal/outbox"
	"nostrcore/internal/relay"
	"nostrcore/internal/relaypool"
)

type noopTransport struct{}

func (noopTransport) Dial(ctx context.Context, url string) error { return nil }
func (noopTransport) Close(url string) error                     { return nil }

type fakePublisher struct {
	fail map[string]bool
}

func (p *fakePublisher) Publish(ctx context.Context, relayURL string, event nostr.Event) error {
	if p.fail[relayURL] {
		return errNotDelivered
	}
	return nil
}

var errNotDelivered = &publishError{"relay rejected"}

type publishError struct{ msg string }

func (e *publishError) Error() string { return e.msg }

type fakeRequester struct {
	subscribed map[string]bool
}

func (r *fakeRequester) Subscribe(ctx context.Context, relayURL, subID string, filters []nostr.Filter) error {
	if r.subscribed == nil {
		r.subscribed = make(map[string]bool)
	}
	r.subscribed[relayURL+"/"+subID] = true
	return nil
}

func (r *fakeRequester) Unsubscribe(relayURL, subID string) error {
	delete(r.subscribed, relayURL+"/"+subID)
	return nil
}

func newConnectedClient(t *testing.T, fail map[string]bool) (*Client, *relay.Supervisor) {
	t.Helper()
	sup := relay.NewSupervisor(noopTransport{}, relay.DefaultBackoffConfig(), relay.DefaultHealthCheckConfig(), nil)
	r := sup.Add("wss://a.example", true)
	r.BeginConnect()
	r.ConnectOK(time.Now(), 10)

	ob, err := outbox.Open(outbox.Config{StoragePath: filepath.Join(t.TempDir(), "outbox.json")}, "", nil)
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}

	cl := New(Config{PublishRedundancy: 5}, sup, &fakePublisher{fail: fail}, &fakeRequester{}, ob, nil, nil)
	return cl, sup
}

func TestPublishDeliversOverConnectedRelay(t *testing.T) {
	cl, _ := newConnectedClient(t, nil)
	result := cl.Publish(context.Background(), nostr.Event{ID: "evt1"}, nil)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Queued {
		t.Fatalf("expected not queued when a relay is connected")
	}
}

func TestPublishQueuesWhenNoRelayConnected(t *testing.T) {
	sup := relay.NewSupervisor(noopTransport{}, relay.DefaultBackoffConfig(), relay.DefaultHealthCheckConfig(), nil)
	sup.Add("wss://a.example", true) // never connected

	ob, err := outbox.Open(outbox.Config{StoragePath: filepath.Join(t.TempDir(), "outbox.json")}, "", nil)
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	cl := New(Config{PublishRedundancy: 5}, sup, &fakePublisher{}, &fakeRequester{}, ob, nil, nil)

	result := cl.Publish(context.Background(), nostr.Event{ID: "evt1"}, nil)
	if result.Success {
		t.Fatalf("expected success=false when queued")
	}
	if !result.Queued {
		t.Fatalf("expected Queued=true")
	}
	if ob.Size() != 1 {
		t.Fatalf("expected event enqueued, size=%d", ob.Size())
	}
}

func TestOnOnlineConnectsAndFlushes(t *testing.T) {
	sup := relay.NewSupervisor(noopTransport{}, relay.DefaultBackoffConfig(), relay.DefaultHealthCheckConfig(), nil)
	sup.Add("wss://a.example", true)

	ob, err := outbox.Open(outbox.Config{StoragePath: filepath.Join(t.TempDir(), "outbox.json")}, "", nil)
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	cl := New(Config{PublishRedundancy: 5, ConnectOptions: relaypool.SelectForConnectOptions{Max: 5}}, sup, &fakePublisher{}, &fakeRequester{}, ob, nil, nil)

	if err := ob.Enqueue(nostr.Event{ID: "evt1"}, nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := cl.OnOnline(context.Background(), cl.OutboxSender()); err != nil {
		t.Fatalf("on online: %v", err)
	}
	if ob.Size() != 0 {
		t.Fatalf("expected outbox drained after connect+flush, size=%d", ob.Size())
	}
}

func TestSubscribeRequiresConnectedRelay(t *testing.T) {
	sup := relay.NewSupervisor(noopTransport{}, relay.DefaultBackoffConfig(), relay.DefaultHealthCheckConfig(), nil)
	sup.Add("wss://a.example", true)
	ob, err := outbox.Open(outbox.Config{StoragePath: filepath.Join(t.TempDir(), "outbox.json")}, "", nil)
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	cl := New(Config{}, sup, &fakePublisher{}, &fakeRequester{}, ob, nil, nil)

	if _, err := cl.Subscribe(context.Background(), "sub1", nil, func(nostr.Event, string) {}, nil); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSubscribeAndCloseRoundtrip(t *testing.T) {
	cl, _ := newConnectedClient(t, nil)
	sub, err := cl.Subscribe(context.Background(), "sub1", nil, func(nostr.Event, string) {}, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub == nil {
		t.Fatalf("expected non-nil subscription")
	}
	cl.CloseSubscription("sub1")
	cl.mu.Lock()
	_, stillPresent := cl.subscriptions["sub1"]
	cl.mu.Unlock()
	if stillPresent {
		t.Fatalf("expected subscription removed after close")
	}
}

func TestDisconnectPreservesReliabilityStats(t *testing.T) {
	cl, sup := newConnectedClient(t, nil)
	r := sup.Get("wss://a.example")
	before := r.ReliabilityScore()

	cl.Disconnect()

	if r.State() != relay.Disconnected {
		t.Fatalf("expected relay disconnected, got %v", r.State())
	}
	if r.ReliabilityScore() != before {
		t.Fatalf("expected reliability score preserved across disconnect, got %v want %v", r.ReliabilityScore(), before)
	}
}
