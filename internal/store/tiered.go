package store

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

// Tiered combines the volatile cache with the durable fallback.
//
// Graceful degradation: the cache is optional. A nil or failing cache
// only costs read latency; the durable tier alone keeps every
// operation correct. Total loss of both tiers is the only condition
// under which a read reports not-found for data that logically exists.
type Tiered struct {
	cache   KV // optional, may be nil
	durable KV
}

// NewTiered builds the two-tier store. cache may be nil for
// durable-only operation.
func NewTiered(cache, durable KV) *Tiered {
	return &Tiered{cache: cache, durable: durable}
}

// Get reads cache-first, falls back to the durable tier on miss or
// error, and backfills the cache so subsequent reads are fast.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	if t.cache != nil {
		data, err := t.cache.Get(ctx, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			log.Printf("Warning: cache read failed for %s: %v", key, err)
		}
	}

	data, err := t.durable.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	t.backfill(ctx, key, data)
	return data, nil
}

// Set writes through to both tiers. The cache write is best-effort;
// the durable write's error is the one reported.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if t.cache != nil {
		if err := t.cache.Set(ctx, key, value, ttl); err != nil {
			log.Printf("Warning: cache write failed for %s: %v", key, err)
		}
	}

	return t.durable.Set(ctx, key, value, ttl)
}

// Delete removes the key from both tiers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	if t.cache != nil {
		if err := t.cache.Delete(ctx, key); err != nil {
			log.Printf("Warning: cache delete failed for %s: %v", key, err)
		}
	}

	return t.durable.Delete(ctx, key)
}

// Keys lists keys from the durable tier, the source of truth for
// enumeration (cache entries expire).
func (t *Tiered) Keys(ctx context.Context, prefix string) ([]string, error) {
	return t.durable.Keys(ctx, prefix)
}

func (t *Tiered) backfill(ctx context.Context, key string, data []byte) {
	if t.cache == nil {
		return
	}

	var ttl time.Duration
	switch {
	case key == KeyScanHistory || key == KeyScanIndex:
		ttl = 0 // rolling lists never expire
	case strings.HasPrefix(key, "scan:"):
		ttl = ScanTTL
	default:
		ttl = ProgressTTL
	}

	if err := t.cache.Set(ctx, key, data, ttl); err != nil {
		log.Printf("Warning: cache backfill failed for %s: %v", key, err)
	}
}
