package relay

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"nostrcore/internal/platform/ratelimiter"
)

// ErrRetriesExhausted is returned by BackoffConfig.Delay once attempts has
// reached MaxAttempts; the caller must invoke Retry to resume automatic
// reconnection.
var ErrRetriesExhausted = errors.New("relay: retries exhausted, call Retry")

// ErrUnknownRelay is returned by Supervisor methods given a URL that was
// never added.
var ErrUnknownRelay = errors.New("relay: unknown relay url")

// ErrRetryRateLimited is returned by Retry when a caller invokes it for
// the same URL faster than retryRateLimitPerSecond (with a burst of
// retryRateLimitBurst) allows, guarding against a
// caller-driven retry loop bypassing the backoff schedule entirely.
var ErrRetryRateLimited = errors.New("relay: manual retry rate limited")

const (
	retryRateLimitPerSecond = 1
	retryRateLimitBurst     = 3
)

// Transport is the minimal connection contract the supervisor drives; the
// production implementation wraps github.com/gorilla/websocket, and tests
// substitute a fake.
type Transport interface {
	// Dial opens the connection to url, returning once the relay is ready
	// to accept messages or ctx is cancelled.
	Dial(ctx context.Context, url string) error
	// Close tears down any resources Dial acquired for url.
	Close(url string) error
}

// HealthCheckConfig parameterizes the supervisor's periodic reconnect
// sweep.
type HealthCheckConfig struct {
	Interval       time.Duration
	MinConnections int
}

// DefaultHealthCheckConfig returns the module's stated default schedule.
func DefaultHealthCheckConfig() HealthCheckConfig {
	return HealthCheckConfig{Interval: 60 * time.Second, MinConnections: 5}
}

// Supervisor owns a set of Relay entries and drives their connection
// lifecycle: connect, backoff-scheduled reconnect, and the health-check
// loop. It holds no opinions about relay selection policy — that lives in
// internal/relaypool.
type Supervisor struct {
	transport    Transport
	backoff      BackoffConfig
	health       HealthCheckConfig
	logger       *slog.Logger
	retryLimiter *ratelimiter.MapLimiter

	// OnConnect, if set, is called after every successful dial (fresh
	// connect or automatic/manual reconnect). The production wiring uses
	// it to start a WireClient.ReadLoop over the same transport instance,
	// since the supervisor itself only owns the connection lifecycle, not
	// the wire protocol running over it.
	OnConnect func(url string)

	mu      sync.Mutex
	relays  map[string]*Relay
	timers  map[string]*time.Timer
	stopCh  chan struct{}
	stopped bool
}

// NewSupervisor constructs a supervisor over transport with the given
// backoff and health-check configuration. A nil logger falls back to
// slog.Default(). Manual Retry calls are rate-limited per relay URL
// (retryRateLimitPerSecond, burst retryRateLimitBurst) so a misbehaving
// caller can't spin a relay's reconnect loop faster than the backoff
// schedule intends.
func NewSupervisor(transport Transport, backoff BackoffConfig, health HealthCheckConfig, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		transport:    transport,
		backoff:      backoff.normalized(),
		health:       health,
		logger:       logger,
		retryLimiter: ratelimiter.New(retryRateLimitPerSecond, retryRateLimitBurst, 10*time.Minute),
		relays:       make(map[string]*Relay),
		timers:       make(map[string]*time.Timer),
	}
}

// Add registers url (idempotent) and returns its Relay handle.
func (s *Supervisor) Add(url string, primary bool) *Relay {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.relays[url]; ok {
		return r
	}
	r := NewRelay(url, primary)
	s.relays[url] = r
	return r
}

// Get returns the Relay for url, or nil if unknown.
func (s *Supervisor) Get(url string) *Relay {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relays[url]
}

// All returns every registered relay.
func (s *Supervisor) All() []*Relay {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Relay, 0, len(s.relays))
	for _, r := range s.relays {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Connect dials url synchronously, updating its state and reliability
// score from the outcome. On failure it schedules an automatic
// reconnect per the backoff schedule, unless attempts has reached
// MaxAttempts.
func (s *Supervisor) Connect(ctx context.Context, url string) error {
	r := s.Get(url)
	if r == nil {
		return ErrUnknownRelay
	}
	if r.Blacklisted() {
		return nil
	}

	r.BeginConnect()
	gen := r.Generation()
	start := time.Now()
	err := s.transport.Dial(ctx, url)
	now := time.Now()

	if err != nil {
		r.ConnectErr(now, err)
		s.logger.Warn("relay connect failed", "url", url, "error", err)
		s.scheduleReconnect(url, gen)
		return err
	}
	r.ConnectOK(now, float64(now.Sub(start).Milliseconds()))
	s.logger.Info("relay connected", "url", url, "latency_ms", now.Sub(start).Milliseconds())
	if s.OnConnect != nil {
		s.OnConnect(url)
	}
	return nil
}

// scheduleReconnect arms a backoff timer for url, guarded by the
// generation counter observed when the failure occurred: if the relay's
// generation has moved on (manual retry, blacklist, disconnect_all) by
// the time the timer fires, the reconnect is skipped.
func (s *Supervisor) scheduleReconnect(url string, observedGen uint64) {
	r := s.Get(url)
	if r == nil {
		return
	}
	// r.Attempts() already counts the connect attempt that just failed
	// (BeginConnect bumps it before dialing), so the backoff formula is
	// evaluated directly against it: the first failure schedules Delay(1).
	delay, err := s.backoff.Delay(r.Attempts())
	if err != nil {
		s.logger.Warn("relay retries exhausted, manual retry required", "url", url)
		return
	}

	s.mu.Lock()
	if old, ok := s.timers[url]; ok {
		old.Stop()
	}
	s.timers[url] = time.AfterFunc(delay, func() {
		if r.Generation() != observedGen || r.Blacklisted() {
			return
		}
		_ = s.Connect(context.Background(), url)
	})
	s.mu.Unlock()
}

// Disconnect closes the transport for url and marks it Disconnected,
// bumping its generation so any pending reconnect timer is invalidated.
func (s *Supervisor) Disconnect(url string) error {
	r := s.Get(url)
	if r == nil {
		return ErrUnknownRelay
	}
	s.cancelTimer(url)
	err := s.transport.Close(url)
	r.Reset()
	return err
}

// DisconnectAll closes every relay's transport and invalidates every
// in-flight reconnect timer.
func (s *Supervisor) DisconnectAll() {
	for _, r := range s.All() {
		_ = s.Disconnect(r.URL)
	}
}

// Retry clears url's attempt count and reconnects immediately, for use
// once MaxAttempts has been reached. Once a burst of retryRateLimitBurst
// calls for the same url is spent, calls faster than
// retryRateLimitPerSecond return ErrRetryRateLimited instead of dialing.
func (s *Supervisor) Retry(ctx context.Context, url string) error {
	r := s.Get(url)
	if r == nil {
		return ErrUnknownRelay
	}
	if !s.retryLimiter.Allow(url, time.Now()) {
		return ErrRetryRateLimited
	}
	s.cancelTimer(url)
	r.Retry()
	return s.Connect(ctx, url)
}

func (s *Supervisor) cancelTimer(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[url]; ok {
		t.Stop()
		delete(s.timers, url)
	}
}

// Blacklist marks url blacklisted and disconnects it if currently
// connected or connecting.
func (s *Supervisor) Blacklist(url string) error {
	r := s.Get(url)
	if r == nil {
		return ErrUnknownRelay
	}
	r.SetBlacklisted(true)
	if st := r.State(); st == Connected || st == Connecting {
		return s.Disconnect(url)
	}
	return nil
}

// Unblacklist clears url's blacklist flag without reconnecting it.
func (s *Supervisor) Unblacklist(url string) error {
	r := s.Get(url)
	if r == nil {
		return ErrUnknownRelay
	}
	r.SetBlacklisted(false)
	return nil
}

// ConnectedCount returns how many registered relays are in the Connected
// state.
func (s *Supervisor) ConnectedCount() int {
	n := 0
	for _, r := range s.All() {
		if r.State() == Connected {
			n++
		}
	}
	return n
}

// StartHealthCheck runs the periodic reconnect sweep until ctx is
// cancelled: if fewer than MinConnections relays are
// connected, it connects eligible disconnected, non-blacklisted relays
// sorted by reliability score descending until the minimum is reached or
// the pool is exhausted.
func (s *Supervisor) StartHealthCheck(ctx context.Context) {
	interval := s.health.Interval
	if interval <= 0 {
		interval = DefaultHealthCheckConfig().Interval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.healthCheckOnce(ctx)
			}
		}
	}()
}

func (s *Supervisor) healthCheckOnce(ctx context.Context) {
	minConn := s.health.MinConnections
	if minConn <= 0 {
		minConn = DefaultHealthCheckConfig().MinConnections
	}
	connected := s.ConnectedCount()
	if connected >= minConn {
		return
	}

	candidates := make([]*Relay, 0)
	for _, r := range s.All() {
		if r.Blacklisted() {
			continue
		}
		if st := r.State(); st == Disconnected || st == Error {
			candidates = append(candidates, r)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ReliabilityScore() > candidates[j].ReliabilityScore()
	})

	for _, r := range candidates {
		if connected >= minConn {
			break
		}
		if err := s.Connect(ctx, r.URL); err == nil {
			connected++
		}
	}
}
