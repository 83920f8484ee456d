// Package outbox implements the persistent store-and-forward queue (spec
// section 4.7): idempotent enqueue, serialized flush, retry capping, and
// size/age pruning, backed by internal/securestore so the queue survives
// process restarts.
package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"nostrcore/internal/nostr"
	"nostrcore/internal/securestore"
)

const (
	defaultMaxQueueSize = 100
	defaultMaxRetries   = 5
	defaultMaxEventAge  = 24 * time.Hour
)

// QueuedEvent is one durable outbox entry.
type QueuedEvent struct {
	Event         nostr.Event `json:"event"`
	RelayURLs     []string    `json:"relay_urls"`
	QueuedAt      time.Time   `json:"queued_at"`
	Attempts      int         `json:"attempts"`
	LastAttemptAt time.Time   `json:"last_attempt_at"`
}

// PublishResult is what the injected Sender reports for one flush attempt.
type PublishResult struct {
	Success bool
	Err     error
}

// Sender publishes event to relayURLs and reports the outcome. Production
// wiring implements this over internal/relaypool.Fanout; tests inject a
// scripted fake.
type Sender func(ctx context.Context, event nostr.Event, relayURLs []string) PublishResult

// Config parameterizes queue limits and the on-disk location of the
// persisted queue.
type Config struct {
	MaxQueueSize int
	MaxRetries   int
	MaxEventAge  time.Duration
	StoragePath  string
}

func (c Config) normalized() Config {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = defaultMaxQueueSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MaxEventAge <= 0 {
		c.MaxEventAge = defaultMaxEventAge
	}
	return c
}

// Outbox is a single durable queue, exclusively owned by the caller for
// its configured storage path; two Outbox instances must never share one.
type Outbox struct {
	cfg    Config
	secret string
	logger *slog.Logger

	mu       sync.Mutex
	items    []QueuedEvent
	flushing sync.Mutex // held for the duration of a Flush, serializing concurrent callers
}

// Open loads any persisted queue at cfg.StoragePath (tolerating malformed
// bytes by resetting to empty) and prunes expired entries immediately.
func Open(cfg Config, secret string, logger *slog.Logger) (*Outbox, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Outbox{cfg: cfg.normalized(), secret: secret, logger: logger}

	if securestore.IsStorageConfigured(cfg.StoragePath, secret) {
		raw, err := securestore.ReadDecryptedFile(cfg.StoragePath, secret)
		if err != nil {
			logger.Warn("outbox: no persisted queue found, starting empty", "path", cfg.StoragePath, "error", err)
		} else {
			var items []QueuedEvent
			if err := json.Unmarshal(raw, &items); err != nil {
				logger.Warn("outbox: persisted queue malformed, resetting to empty", "path", cfg.StoragePath, "error", err)
			} else {
				o.items = items
			}
		}
	}

	o.pruneExpiredLocked(time.Now())
	return o, o.persistLocked()
}

// Size returns the current queue length.
func (o *Outbox) Size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Items returns a copy of the queue in insertion order.
func (o *Outbox) Items() []QueuedEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]QueuedEvent, len(o.items))
	copy(out, o.items)
	return out
}

// Enqueue adds event for delivery to relayURLs. If event.ID is already
// queued, relayURLs is unioned into the existing entry instead of adding a
// duplicate. Enqueue always persists.
func (o *Outbox) Enqueue(event nostr.Event, relayURLs []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := range o.items {
		if o.items[i].Event.ID == event.ID {
			o.items[i].RelayURLs = unionPreserveOrder(o.items[i].RelayURLs, relayURLs)
			return o.persistLocked()
		}
	}

	o.items = append(o.items, QueuedEvent{
		Event:     event,
		RelayURLs: append([]string(nil), relayURLs...),
		QueuedAt:  time.Now(),
	})
	if len(o.items) > o.cfg.MaxQueueSize {
		drop := len(o.items) - o.cfg.MaxQueueSize
		o.items = o.items[drop:]
	}
	return o.persistLocked()
}

func unionPreserveOrder(existing, additional []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := append([]string(nil), existing...)
	for _, s := range existing {
		seen[s] = struct{}{}
	}
	for _, a := range additional {
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// pruneExpiredLocked drops items older than MaxEventAge without invoking
// the sender. Caller must hold o.mu.
func (o *Outbox) pruneExpiredLocked(now time.Time) {
	kept := o.items[:0:0]
	for _, it := range o.items {
		if now.Sub(it.QueuedAt) < o.cfg.MaxEventAge {
			kept = append(kept, it)
		}
	}
	o.items = kept
}

// Flush serializes concurrent callers: a caller arriving while a flush is
// in progress waits for it to finish and then runs its own pass; it does
// not share the in-progress flush's result. Each pass prunes expired items, then
// attempts delivery of each remaining item in
// insertion order via send, removing successes, dropping items that have
// exhausted MaxRetries, and retaining the rest for a future flush.
func (o *Outbox) Flush(ctx context.Context, send Sender) error {
	o.flushing.Lock()
	defer o.flushing.Unlock()

	o.mu.Lock()
	now := time.Now()
	o.pruneExpiredLocked(now)
	pending := make([]QueuedEvent, len(o.items))
	copy(pending, o.items)
	o.mu.Unlock()

	kept := make([]QueuedEvent, 0, len(pending))
	for _, item := range pending {
		item.Attempts++
		item.LastAttemptAt = time.Now()
		result := send(ctx, item.Event, item.RelayURLs)
		switch {
		case result.Success:
			continue
		case item.Attempts >= o.cfg.MaxRetries:
			o.logger.Warn("outbox: dropping event after max retries", "event_id", item.Event.ID, "attempts", item.Attempts)
		default:
			kept = append(kept, item)
		}
	}

	processedIDs := make(map[string]struct{}, len(pending))
	for _, p := range pending {
		processedIDs[p.Event.ID] = struct{}{}
	}

	o.mu.Lock()
	o.items = mergeSurvivors(o.items, processedIDs, kept)
	err := o.persistLocked()
	o.mu.Unlock()
	return err
}

// mergeSurvivors reconciles the flush outcome with whatever Enqueue calls
// ran concurrently while Flush was in flight. current is o.items as of
// the merge (the untouched pending snapshot plus any concurrent
// enqueues); processedIDs names which of those were part of the flushed
// snapshot; kept holds the updated (attempts-incremented) survivors among
// them. Items in processedIDs but absent from kept succeeded or were
// dropped for exhausting retries, and are removed; items not in
// processedIDs are concurrent enqueues and pass through unchanged.
func mergeSurvivors(current []QueuedEvent, processedIDs map[string]struct{}, kept []QueuedEvent) []QueuedEvent {
	keptByID := make(map[string]QueuedEvent, len(kept))
	for _, k := range kept {
		keptByID[k.Event.ID] = k
	}
	out := make([]QueuedEvent, 0, len(current))
	for _, c := range current {
		if _, wasProcessed := processedIDs[c.Event.ID]; !wasProcessed {
			out = append(out, c)
			continue
		}
		if k, survived := keptByID[c.Event.ID]; survived {
			out = append(out, k)
		}
	}
	return out
}

// persistLocked serializes the queue to storage. On quota exhaustion it
// drops the oldest half and retries once; if that also fails it degrades
// to in-memory only and logs. Caller must hold o.mu.
func (o *Outbox) persistLocked() error {
	if !securestore.IsStorageConfigured(o.cfg.StoragePath, o.secret) {
		return nil
	}
	err := securestore.WriteEncryptedJSON(o.cfg.StoragePath, o.secret, o.items)
	if err == nil {
		return nil
	}
	o.logger.Warn("outbox: persist failed, dropping oldest half and retrying", "error", err)
	if len(o.items) > 1 {
		o.items = o.items[len(o.items)/2:]
	}
	if err := securestore.WriteEncryptedJSON(o.cfg.StoragePath, o.secret, o.items); err != nil {
		o.logger.Error("outbox: persist failed after retry, degrading to in-memory only", "error", err)
		return nil
	}
	return nil
}

// SortByQueuedAt returns items sorted ascending by QueuedAt; used by
// callers that want deterministic ordering independent of map iteration.
func SortByQueuedAt(items []QueuedEvent) []QueuedEvent {
	out := append([]QueuedEvent(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].QueuedAt.Before(out[j].QueuedAt) })
	return out
}
