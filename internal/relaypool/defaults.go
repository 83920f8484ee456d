package relaypool

// RelayConfig is one entry in a default relay list: a URL, whether it is
// treated as a primary relay for scoring purposes, and its optional
// geographic coordinates for proximity-based selection.
type RelayConfig struct {
	URL      string
	Primary  bool
	Location *LatLon
}

// DefaultRelays is the larger, geo-annotated relay list this module treats
// as authoritative (see DESIGN.md open-question resolution): broad
// geographic spread so proximity-based select_for_connect has real
// candidates to rank, with a handful marked Primary.
func DefaultRelays() []RelayConfig {
	return []RelayConfig{
		{URL: "wss://relay.damus.io", Primary: true, Location: &LatLon{Lat: 37.7749, Lon: -122.4194}},
		{URL: "wss://relay.primal.net", Primary: true, Location: &LatLon{Lat: 40.7128, Lon: -74.0060}},
		{URL: "wss://nos.lol", Primary: false, Location: &LatLon{Lat: 52.5200, Lon: 13.4050}},
		{URL: "wss://relay.nostr.band", Primary: false, Location: &LatLon{Lat: 51.5074, Lon: -0.1278}},
		{URL: "wss://nostr.wine", Primary: false, Location: &LatLon{Lat: 48.8566, Lon: 2.3522}},
		{URL: "wss://relay.snort.social", Primary: false, Location: &LatLon{Lat: -33.8688, Lon: 151.2093}},
		{URL: "wss://relay.nostr.info", Primary: false, Location: &LatLon{Lat: 35.6762, Lon: 139.6503}},
		{URL: "wss://nostr.mom", Primary: false, Location: &LatLon{Lat: -23.5505, Lon: -46.6333}},
		{URL: "wss://relay.nostrich.de", Primary: false, Location: &LatLon{Lat: 50.1109, Lon: 8.6821}},
		{URL: "wss://relay.nostrplebs.com", Primary: false, Location: &LatLon{Lat: 19.0760, Lon: 72.8777}},
	}
}

// LegacyDefaultRelays is the short, unannotated list the original
// distillation shipped; kept for callers that explicitly opt out of
// proximity-based selection.
func LegacyDefaultRelays() []RelayConfig {
	return []RelayConfig{
		{URL: "wss://relay.damus.io", Primary: true},
		{URL: "wss://nos.lol", Primary: false},
		{URL: "wss://relay.nostr.band", Primary: false},
	}
}
