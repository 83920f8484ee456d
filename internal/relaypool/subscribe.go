package relaypool

import (
	"container/list"
	"sync"

	"nostrcore/internal/nostr"
)

const globalEventIndexCap = 10000

// globalEventIndex maps event id to the set of relay URLs that have
// delivered it, capped at globalEventIndexCap entries with FIFO eviction.
type globalEventIndex struct {
	mu    sync.Mutex
	order *list.List
	byID  map[string]*list.Element
}

type globalEventIndexEntry struct {
	eventID string
	relays  map[string]struct{}
}

func newGlobalEventIndex() *globalEventIndex {
	return &globalEventIndex{order: list.New(), byID: make(map[string]*list.Element)}
}

func (g *globalEventIndex) record(eventID, relayURL string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if el, ok := g.byID[eventID]; ok {
		el.Value.(*globalEventIndexEntry).relays[relayURL] = struct{}{}
		return
	}
	entry := &globalEventIndexEntry{eventID: eventID, relays: map[string]struct{}{relayURL: {}}}
	el := g.order.PushBack(entry)
	g.byID[eventID] = el
	for g.order.Len() > globalEventIndexCap {
		oldest := g.order.Front()
		if oldest == nil {
			break
		}
		g.order.Remove(oldest)
		delete(g.byID, oldest.Value.(*globalEventIndexEntry).eventID)
	}
}

// relaysFor returns every relay URL recorded as having delivered eventID.
func (g *globalEventIndex) relaysFor(eventID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	el, ok := g.byID[eventID]
	if !ok {
		return nil
	}
	entry := el.Value.(*globalEventIndexEntry)
	out := make([]string, 0, len(entry.relays))
	for r := range entry.relays {
		out = append(out, r)
	}
	return out
}

// EventHandler is invoked once per distinct event.id a subscription
// observes, with the relay URL it first arrived from for this call.
type EventHandler func(event nostr.Event, relayURL string)

// Subscription fans events in from multiple relays into a single
// deduplicated callback stream.
type Subscription struct {
	ID      string
	Filters []nostr.Filter
	onEvent EventHandler
	onEOSE  func()

	index *globalEventIndex
	mu    sync.Mutex
	seen  map[string]struct{}
	order *list.List // FIFO of seen ids, bounded by defaultSeenCap
}

const defaultSeenCap = 50000

// NewSubscription constructs a subscription that calls onEvent for every
// distinct event id across all relays it is attached to, and onEOSE once
// the underlying pool reports end-of-stored-events.
func NewSubscription(id string, filters []nostr.Filter, onEvent EventHandler, onEOSE func(), index *globalEventIndex) *Subscription {
	if index == nil {
		index = newGlobalEventIndex()
	}
	return &Subscription{
		ID:      id,
		Filters: filters,
		onEvent: onEvent,
		onEOSE:  onEOSE,
		index:   index,
		seen:    make(map[string]struct{}),
		order:   list.New(),
	}
}

// Deliver is called by the pool for every event received from relayURL.
// Duplicate event ids within this subscription are dropped silently.
func (s *Subscription) Deliver(event nostr.Event, relayURL string) {
	s.mu.Lock()
	if _, ok := s.seen[event.ID]; ok {
		s.mu.Unlock()
		return
	}
	s.seen[event.ID] = struct{}{}
	s.order.PushBack(event.ID)
	for s.order.Len() > defaultSeenCap {
		oldest := s.order.Front()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.seen, oldest.Value.(string))
	}
	s.mu.Unlock()

	s.index.record(event.ID, relayURL)
	if s.onEvent != nil {
		s.onEvent(event, relayURL)
	}
}

// EOSE notifies the subscription's caller that the underlying pool has
// reported end-of-stored-events.
func (s *Subscription) EOSE() {
	if s.onEOSE != nil {
		s.onEOSE()
	}
}

// Close purges the subscription's seen set. The caller is responsible for actually cancelling per-relay
// REQ state; Close only releases this subscription's own memory.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]struct{})
	s.order = list.New()
}
