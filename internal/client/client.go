// Package client implements the public client facade: the single entry
// point that owns the relay supervisor, the relay pool's selection/fan-out
// policy, and the outbox queue, and arbitrates between "send over the
// wire now" and "queue for later" by composing those owned subsystems
// behind one Service-shaped struct.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"nostrcore/internal/giftwrap"
	"nostrcore/internal/nostr"
	"nostrcore/internal/outbox"
	"nostrcore/internal/relay"
	"nostrcore/internal/relaypool"
)

// Requester sends a subscription request/teardown to a single relay. The
// production implementation lives alongside the wire-protocol client that
// frames ["REQ", subID, filters...] / ["CLOSE", subID]; tests inject a
// fake.
type Requester interface {
	Subscribe(ctx context.Context, relayURL, subID string, filters []nostr.Filter) error
	Unsubscribe(relayURL, subID string) error
}

// ErrNotConnected is returned by operations that require at least one
// connected relay and have none.
var ErrNotConnected = errors.New("client: no connected relays")

// Config parameterizes the facade's own policy knobs, distinct from the
// underlying supervisor/pool/outbox configuration: those are constructed
// by the caller and passed in, rather than the facade reaching into
// globals.
type Config struct {
	PublishRedundancy int
	ConnectOptions    relaypool.SelectForConnectOptions
}

// Client is the public contract surface: publish, subscribe, flush_outbox,
// enqueue, connect/disconnect.
type Client struct {
	cfg        Config
	supervisor *relay.Supervisor
	publisher  relaypool.Publisher
	requester  Requester
	outbox     *outbox.Outbox
	store      *relaypool.RoutingResultStore
	metrics    *Metrics
	logger     *slog.Logger

	mu            sync.Mutex
	subscriptions map[string]*relaypool.Subscription
	healthCtx     context.Context
	healthCancel  context.CancelFunc
}

// New constructs a Client over already-built subsystems. A nil logger
// falls back to slog.Default(); a nil metrics disables Prometheus
// reporting.
func New(cfg Config, supervisor *relay.Supervisor, publisher relaypool.Publisher, requester Requester, ob *outbox.Outbox, metrics *Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:           cfg,
		supervisor:    supervisor,
		publisher:     publisher,
		requester:     requester,
		outbox:        ob,
		store:         relaypool.NewRoutingResultStore(0),
		metrics:       metrics,
		logger:        logger,
		subscriptions: make(map[string]*relaypool.Subscription),
	}
}

// PublishResult is the outcome of a Publish call: it never throws, and a
// non-success outcome is encoded in the result instead.
type PublishResult struct {
	Event   nostr.Event
	Routing *relaypool.MessageRoutingResult
	Success bool
	Queued  bool
}

// Publish delegates to the relay pool's fan-out if at least one connected
// relay is available; otherwise it enqueues into the outbox and reports
// success=false, since the network has not carried the event yet (spec
// section 4.8).
func (c *Client) Publish(ctx context.Context, event nostr.Event, urls []string) PublishResult {
	targets := c.resolveTargets(urls)
	if len(targets) == 0 {
		if err := c.outbox.Enqueue(event, urls); err != nil {
			c.logger.Warn("client: enqueue failed", "event_id", event.ID, "error", err)
		}
		c.metrics.recordQueueSize(c.outbox.Size())
		return PublishResult{Event: event, Success: false, Queued: true}
	}

	routing := relaypool.Fanout(ctx, c.publisher, targets, event, c.store)
	for _, url := range routing.Succeeded {
		c.metrics.recordPublish(url, true)
	}
	for url := range routing.Failed {
		c.metrics.recordPublish(url, false)
	}
	c.metrics.recordReliability(targets)
	return PublishResult{Event: event, Routing: &routing, Success: len(routing.Succeeded) > 0}
}

func (c *Client) resolveTargets(urls []string) []*relay.Relay {
	if len(urls) == 0 {
		return relaypool.SelectForPublish(c.supervisor, c.cfg.PublishRedundancy)
	}
	out := make([]*relay.Relay, 0, len(urls))
	for _, url := range urls {
		r := c.supervisor.Get(url)
		if r != nil && r.State() == relay.Connected && !r.Blacklisted() {
			out = append(out, r)
		}
	}
	return out
}

// Enqueue adds event directly to the outbox without attempting immediate
// delivery.
func (c *Client) Enqueue(event nostr.Event, urls []string) error {
	err := c.outbox.Enqueue(event, urls)
	c.metrics.recordQueueSize(c.outbox.Size())
	return err
}

// FlushOutbox attempts delivery of every queued event via send.
func (c *Client) FlushOutbox(ctx context.Context, send outbox.Sender) error {
	err := c.outbox.Flush(ctx, send)
	c.metrics.recordQueueSize(c.outbox.Size())
	return err
}

// OutboxSender returns a Sender that routes through this client's
// supervisor/publisher exactly as Publish would, for use with
// FlushOutbox: queued events retry through the same selection policy as
// a fresh publish.
func (c *Client) OutboxSender() outbox.Sender {
	return func(ctx context.Context, event nostr.Event, relayURLs []string) outbox.PublishResult {
		targets := c.resolveTargets(relayURLs)
		if len(targets) == 0 {
			return outbox.PublishResult{Success: false, Err: ErrNotConnected}
		}
		routing := relaypool.Fanout(ctx, c.publisher, targets, event, c.store)
		for _, url := range routing.Succeeded {
			c.metrics.recordPublish(url, true)
		}
		for url := range routing.Failed {
			c.metrics.recordPublish(url, false)
		}
		if len(routing.Succeeded) == 0 {
			return outbox.PublishResult{Success: false, Err: errors.New("client: all relays rejected publish")}
		}
		return outbox.PublishResult{Success: true}
	}
}

// ConnectAll dials every relay SelectForConnect chooses under c.cfg.ConnectOptions.
func (c *Client) ConnectAll(ctx context.Context) {
	targets := relaypool.SelectForConnect(c.supervisor, c.cfg.ConnectOptions)
	var wg sync.WaitGroup
	for _, r := range targets {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			if err := c.supervisor.Connect(ctx, url); err != nil {
				c.logger.Warn("client: connect failed", "url", url, "error", err)
			}
		}(r.URL)
	}
	wg.Wait()
	c.metrics.recordReliability(c.supervisor.All())
}

// OnOnline implements the host's "online" signal handler: reconnect
// everything, then flush whatever is queued.
func (c *Client) OnOnline(ctx context.Context, send outbox.Sender) error {
	c.ConnectAll(ctx)
	return c.FlushOutbox(ctx, send)
}

// Subscribe delegates to the relay pool: it builds a deduplicating
// Subscription and issues a subscribe request to every currently
// connected relay. Subscription intent is not queued across disconnects —
// reconnecting relays get a fresh REQ, not a replay of past subscribes.
func (c *Client) Subscribe(ctx context.Context, id string, filters []nostr.Filter, onEvent relaypool.EventHandler, onEOSE func()) (*relaypool.Subscription, error) {
	sub := relaypool.NewSubscription(id, filters, onEvent, onEOSE, nil)

	connected := make([]*relay.Relay, 0)
	for _, r := range c.supervisor.All() {
		if r.State() == relay.Connected && !r.Blacklisted() {
			connected = append(connected, r)
		}
	}
	if len(connected) == 0 {
		return nil, ErrNotConnected
	}
	for _, r := range connected {
		if err := c.requester.Subscribe(ctx, r.URL, id, filters); err != nil {
			c.logger.Warn("client: subscribe failed", "url", r.URL, "sub_id", id, "error", err)
		}
	}

	c.mu.Lock()
	c.subscriptions[id] = sub
	c.mu.Unlock()
	return sub, nil
}

// Deliver satisfies relay.EventDispatcher: WireClient's read loop calls
// this for every EVENT frame it parses off the wire, addressed by
// subscription id, and Client forwards it to the matching Subscription.
func (c *Client) Deliver(subID string, event nostr.Event, relayURL string) {
	c.mu.Lock()
	sub, ok := c.subscriptions[subID]
	c.mu.Unlock()
	if !ok {
		return
	}
	sub.Deliver(event, relayURL)
}

// EOSE satisfies relay.EventDispatcher for EOSE/CLOSED frames.
func (c *Client) EOSE(subID string) {
	c.mu.Lock()
	sub, ok := c.subscriptions[subID]
	c.mu.Unlock()
	if !ok {
		return
	}
	sub.EOSE()
}

// DirectMessageHandler receives an unwrapped NIP-17 message, the relay it
// arrived from, and the id of the still-wrapped kind 1059 event it
// decoded.
type DirectMessageHandler func(msg giftwrap.Unwrapped, relayURL, giftWrapEventID string)

// SubscribeDirectMessages is Subscribe specialized for gift-wrapped DMs: it
// filters for kind 1059 and runs every delivered event through
// giftwrap.Unwrap under recipientPriv before handing it to onMessage.
// Gift wraps that fail to decrypt (wrong recipient, tampered seal,
// impersonation) are logged and dropped rather than surfaced to the
// caller, matching giftwrap.Unwrap's own opaque-failure contract.
func (c *Client) SubscribeDirectMessages(ctx context.Context, id string, recipientPriv []byte, since int64, onMessage DirectMessageHandler, onEOSE func()) (*relaypool.Subscription, error) {
	filters := []nostr.Filter{{Kinds: []int{nostr.KindGiftWrap}, Since: since}}
	onEvent := func(event nostr.Event, relayURL string) {
		msg, err := giftwrap.Unwrap(event, recipientPriv)
		if err != nil {
			c.logger.Debug("client: gift wrap unwrap failed", "event_id", event.ID, "relay", relayURL, "error", err)
			return
		}
		onMessage(msg, relayURL, event.ID)
	}
	return c.Subscribe(ctx, id, filters, onEvent, onEOSE)
}

// CloseSubscription tears down one subscription: unsubscribes from every
// connected relay and releases the subscription's dedup state.
func (c *Client) CloseSubscription(id string) {
	c.mu.Lock()
	sub, ok := c.subscriptions[id]
	delete(c.subscriptions, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	for _, r := range c.supervisor.All() {
		if r.State() == relay.Connected {
			_ = c.requester.Unsubscribe(r.URL, id)
		}
	}
	sub.Close()
}

// StartHealthCheck runs the supervisor's periodic reconnect sweep until
// Disconnect is called.
func (c *Client) StartHealthCheck(ctx context.Context) {
	c.mu.Lock()
	c.healthCtx, c.healthCancel = context.WithCancel(ctx)
	hctx := c.healthCtx
	c.mu.Unlock()
	c.supervisor.StartHealthCheck(hctx)
}

// Disconnect stops the health-check loop, closes every open subscription,
// and closes every relay transport, while preserving reliability stats
// and whitelist/blacklist state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.healthCancel != nil {
		c.healthCancel()
		c.healthCancel = nil
	}
	ids := make([]string, 0, len(c.subscriptions))
	for id := range c.subscriptions {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.CloseSubscription(id)
	}
	c.supervisor.DisconnectAll()
}
