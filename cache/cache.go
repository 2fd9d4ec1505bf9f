// Package cache is a read-through cache with explicit invalidation and atomic
// counters. Entries always carry a TTL, but callers invalidate on mutation and
// never rely on expiry for correctness.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"embed-bot/metrics"
	"embed-bot/models"
)

// Backend is the storage a Cache is layered on.
type Backend interface {
	// Get returns the raw value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Increment atomically adds one to an existing integer value. ok is false,
	// and nothing is written, when the key is absent.
	Increment(ctx context.Context, key string) (n int64, ok bool, err error)
	// Close releases backend resources.
	Close() error
}

// Kind names a cached aggregate.
type Kind string

const (
	KindServer          Kind = "server"
	KindServerPostCount Kind = "server_post_count"
)

// Key is an explicit cache address: an aggregate kind plus its identifying fields.
type Key struct {
	Kind  Kind
	Parts []string
}

// String renders the backend key.
func (k Key) String() string {
	return "embedbot:" + string(k.Kind) + ":" + strings.Join(k.Parts, ":")
}

// ServerKey addresses the cached Server for a vendor context.
func ServerKey(vendor models.Vendor, vendorUID string) Key {
	return Key{Kind: KindServer, Parts: []string{string(vendor), vendorUID}}
}

// ServerPostCountKey addresses the recent post counter of a server.
func ServerPostCountKey(serverID int64) Key {
	return Key{Kind: KindServerPostCount, Parts: []string{strconv.FormatInt(serverID, 10)}}
}

// Lookup is the outcome of Get.
type Lookup int

const (
	// NoHit means the key was never cached or has expired. It is distinct
	// from a Hit on a cached empty value.
	NoHit Lookup = iota
	Hit
)

func (l Lookup) String() string {
	if l == Hit {
		return "hit"
	}
	return "no_hit"
}

// Cache encodes values as JSON on top of a Backend.
type Cache struct {
	backend    Backend
	defaultTTL time.Duration
	metrics    *metrics.Metrics
}

// New creates a cache whose writes default to defaultTTL.
func New(backend Backend, defaultTTL time.Duration) *Cache {
	return &Cache{
		backend:    backend,
		defaultTTL: defaultTTL,
		metrics:    metrics.Get(),
	}
}

type setOptions struct {
	ttl time.Duration
}

// SetOption customizes a single Set call.
type SetOption func(*setOptions)

// WithTTL overrides the default TTL for one write.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
	}
}

// Get decodes the value under key into dst. dst is left untouched on NoHit.
// An entry that cannot be decoded is dropped and reported as NoHit.
func (c *Cache) Get(ctx context.Context, key Key, dst any) (Lookup, error) {
	raw, ok, err := c.backend.Get(ctx, key.String())
	if err != nil {
		return NoHit, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		c.metrics.CacheMissesTotal.WithLabelValues(string(key.Kind)).Inc()
		return NoHit, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(string(key.Kind)).Inc()
		if delErr := c.backend.Delete(ctx, key.String()); delErr != nil {
			return NoHit, fmt.Errorf("cache drop undecodable %s: %w", key, delErr)
		}
		return NoHit, nil
	}
	c.metrics.CacheHitsTotal.WithLabelValues(string(key.Kind)).Inc()
	return Hit, nil
}

// Set stores value under key. A nil value is cached as an explicit empty entry.
func (c *Cache) Set(ctx context.Context, key Key, value any, opts ...SetOption) error {
	o := setOptions{ttl: c.defaultTTL}
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.backend.Set(ctx, key.String(), raw, o.ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete invalidates key.
func (c *Cache) Delete(ctx context.Context, key Key) error {
	if err := c.backend.Delete(ctx, key.String()); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// Increment atomically adds one to a cached counter. A counter that is not
// cached stays uncached so the next read recounts from storage.
func (c *Cache) Increment(ctx context.Context, key Key) (int64, bool, error) {
	n, ok, err := c.backend.Increment(ctx, key.String())
	if err != nil {
		return 0, false, fmt.Errorf("cache increment %s: %w", key, err)
	}
	return n, ok, nil
}

// Close closes the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}
