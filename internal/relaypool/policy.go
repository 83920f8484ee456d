// Package relaypool implements the relay pool/router: selection policies
// over a relay.Supervisor, publish fan-out with per-relay timeouts,
// subscription fan-in with cross-relay dedup, and whitelist/blacklist
// persistence.
package relaypool

import (
	"sort"

	"nostrcore/internal/relay"
)

const defaultPublishRedundancy = 5

// SelectForPublish returns up to redundancy connected, non-blacklisted
// relays from supervisor, primaries first, then by reliability score
// descending, then by latency ascending. redundancy<=0 uses the default
// of 5.
func SelectForPublish(supervisor *relay.Supervisor, redundancy int) []*relay.Relay {
	if redundancy <= 0 {
		redundancy = defaultPublishRedundancy
	}
	candidates := make([]*relay.Relay, 0)
	for _, r := range supervisor.All() {
		if r.State() == relay.Connected && !r.Blacklisted() {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Primary != b.Primary {
			return a.Primary
		}
		if a.ReliabilityScore() != b.ReliabilityScore() {
			return a.ReliabilityScore() > b.ReliabilityScore()
		}
		return a.AvgLatencyMs() < b.AvgLatencyMs()
	})
	if len(candidates) > redundancy {
		candidates = candidates[:redundancy]
	}
	return candidates
}

// SelectForConnectOptions parameterizes SelectForConnect.
type SelectForConnectOptions struct {
	Max                 int
	PrioritizeProximity bool
	Custom              []string
	UserLocation        *LatLon
	RelayLocations       map[string]LatLon
}

// SelectForConnect implements the initial-connect policy: Custom (minus
// blacklist) takes precedence up to Max; otherwise
// whitelisted relays, then primaries, then fill by proximity (if a user
// location is known and requested) or reliability score, deduplicated by
// URL.
func SelectForConnect(supervisor *relay.Supervisor, opts SelectForConnectOptions) []*relay.Relay {
	max := opts.Max
	if max <= 0 {
		max = len(supervisor.All())
	}

	if len(opts.Custom) > 0 {
		out := make([]*relay.Relay, 0, len(opts.Custom))
		for _, url := range opts.Custom {
			r := supervisor.Get(url)
			if r == nil || r.Blacklisted() {
				continue
			}
			out = append(out, r)
			if len(out) >= max {
				break
			}
		}
		return out
	}

	seen := make(map[string]bool)
	out := make([]*relay.Relay, 0, max)
	add := func(r *relay.Relay) bool {
		if seen[r.URL] || r.Blacklisted() {
			return false
		}
		seen[r.URL] = true
		out = append(out, r)
		return len(out) >= max
	}

	for _, r := range supervisor.All() {
		if r.Whitelisted() {
			if add(r) {
				return out
			}
		}
	}
	for _, r := range supervisor.All() {
		if r.Primary {
			if add(r) {
				return out
			}
		}
	}

	remaining := make([]*relay.Relay, 0)
	for _, r := range supervisor.All() {
		if !seen[r.URL] && !r.Blacklisted() {
			remaining = append(remaining, r)
		}
	}

	if opts.PrioritizeProximity && opts.UserLocation != nil && opts.RelayLocations != nil {
		sort.SliceStable(remaining, func(i, j int) bool {
			locI, okI := opts.RelayLocations[remaining[i].URL]
			locJ, okJ := opts.RelayLocations[remaining[j].URL]
			if !okI {
				return false
			}
			if !okJ {
				return true
			}
			return Haversine(*opts.UserLocation, locI) < Haversine(*opts.UserLocation, locJ)
		})
	} else {
		sort.SliceStable(remaining, func(i, j int) bool {
			return remaining[i].ReliabilityScore() > remaining[j].ReliabilityScore()
		})
	}

	for _, r := range remaining {
		if add(r) {
			break
		}
	}
	return out
}
