// Package config loads the pool/outbox settings this module's components
// take at construction, following a normalize-after-merge pattern:
// defaults filled in by a typed struct, overridden field-by-field by
// whatever a YAML file sets, with zero-value fields in the file left
// untouched.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"nostrcore/internal/outbox"
	"nostrcore/internal/relay"
	"nostrcore/internal/relaypool"
)

// RelaySeed is one configured relay entry (the built-in default relay
// list, made overridable).
type RelaySeed struct {
	URL       string   `yaml:"url"`
	Primary   bool     `yaml:"primary"`
	Latitude  *float64 `yaml:"lat"`
	Longitude *float64 `yaml:"lon"`
}

// Config is the top-level YAML document shape this module accepts.
type Config struct {
	Relays             []RelaySeed   `yaml:"relays"`
	PublishRedundancy  int           `yaml:"publishRedundancy"`
	ConnectMax         int           `yaml:"connectMax"`
	BackoffInitial     time.Duration `yaml:"backoffInitial"`
	BackoffMultiplier  float64       `yaml:"backoffMultiplier"`
	BackoffMax         time.Duration `yaml:"backoffMax"`
	BackoffJitter      time.Duration `yaml:"backoffJitter"`
	BackoffMaxAttempts int           `yaml:"backoffMaxAttempts"`
	HealthInterval     time.Duration `yaml:"healthCheckInterval"`
	MinConnections     int           `yaml:"minConnections"`
	OutboxMaxQueueSize int           `yaml:"outboxMaxQueueSize"`
	OutboxMaxRetries   int           `yaml:"outboxMaxRetries"`
	OutboxMaxEventAge  time.Duration `yaml:"outboxMaxEventAge"`
	OutboxStoragePath  string        `yaml:"outboxStoragePath"`
}

// Default returns the built-in configuration: the larger geo-annotated
// relay list and every component's spec-default tuning.
func Default() Config {
	cfg := Config{
		PublishRedundancy: 5,
		ConnectMax:        10,
		BackoffInitial:    1000 * time.Millisecond,
		BackoffMultiplier: 2,
		BackoffMax:        300 * time.Second,
		BackoffJitter:     500 * time.Millisecond,
		BackoffMaxAttempts: 20,
		HealthInterval:     60 * time.Second,
		MinConnections:     5,
		OutboxMaxQueueSize: 100,
		OutboxMaxRetries:   5,
		OutboxMaxEventAge:  24 * time.Hour,
	}
	for _, r := range relaypool.DefaultRelays() {
		seed := RelaySeed{URL: r.URL, Primary: r.Primary}
		if r.Location != nil {
			lat, lon := r.Location.Lat, r.Location.Lon
			seed.Latitude, seed.Longitude = &lat, &lon
		}
		cfg.Relays = append(cfg.Relays, seed)
	}
	return cfg
}

// LoadFromPath reads and merges a YAML config file over Default. A
// missing or malformed file is not an error: it falls back to Default
// rather than failing startup.
func LoadFromPath(path string) Config {
	cfg := Default()
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return cfg
	}
	merge(&cfg, parsed)
	return cfg
}

func merge(dst *Config, src Config) {
	if src.Relays != nil {
		dst.Relays = src.Relays
	}
	mergeIfSet(&dst.PublishRedundancy, src.PublishRedundancy)
	mergeIfSet(&dst.ConnectMax, src.ConnectMax)
	mergeIfSet(&dst.BackoffInitial, src.BackoffInitial)
	mergeIfSet(&dst.BackoffMultiplier, src.BackoffMultiplier)
	mergeIfSet(&dst.BackoffMax, src.BackoffMax)
	mergeIfSet(&dst.BackoffJitter, src.BackoffJitter)
	mergeIfSet(&dst.BackoffMaxAttempts, src.BackoffMaxAttempts)
	mergeIfSet(&dst.HealthInterval, src.HealthInterval)
	mergeIfSet(&dst.MinConnections, src.MinConnections)
	mergeIfSet(&dst.OutboxMaxQueueSize, src.OutboxMaxQueueSize)
	mergeIfSet(&dst.OutboxMaxRetries, src.OutboxMaxRetries)
	mergeIfSet(&dst.OutboxMaxEventAge, src.OutboxMaxEventAge)
	if src.OutboxStoragePath != "" {
		dst.OutboxStoragePath = src.OutboxStoragePath
	}
}

type settable interface {
	~int | ~int64 | ~float64
}

func mergeIfSet[T settable](dst *T, src T) {
	var zero T
	if src != zero {
		*dst = src
	}
}

// BackoffConfig projects the YAML-level backoff fields into relay.BackoffConfig.
func (c Config) BackoffConfig() relay.BackoffConfig {
	return relay.BackoffConfig{
		Initial:     c.BackoffInitial,
		Multiplier:  c.BackoffMultiplier,
		Max:         c.BackoffMax,
		Jitter:      c.BackoffJitter,
		MaxAttempts: c.BackoffMaxAttempts,
	}
}

// HealthCheckConfig projects the YAML-level health-check fields into
// relay.HealthCheckConfig.
func (c Config) HealthCheckConfig() relay.HealthCheckConfig {
	return relay.HealthCheckConfig{Interval: c.HealthInterval, MinConnections: c.MinConnections}
}

// OutboxConfig projects the YAML-level outbox fields into outbox.Config.
func (c Config) OutboxConfig() outbox.Config {
	return outbox.Config{
		MaxQueueSize: c.OutboxMaxQueueSize,
		MaxRetries:   c.OutboxMaxRetries,
		MaxEventAge:  c.OutboxMaxEventAge,
		StoragePath:  c.OutboxStoragePath,
	}
}
