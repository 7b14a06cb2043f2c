// Package store provides the two-tier key/value store behind progress
// tracking and scan memory: a volatile Redis cache in front of a
// durable JSON-file fallback.
//
// Write discipline: every write attempts the cache best-effort and the
// durable tier unconditionally, independent of each other's success.
// Read discipline: cache first; on miss or error fall back to the
// durable tier and backfill the cache. Losing the cache degrades to
// durable-only operation, it is never fatal.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key exists in neither tier.
var ErrNotFound = errors.New("store: key not found")

// Well-known key layout. All values are JSON-encoded strings.
const (
	KeyScanHistory = "scan_history" // rolling summary list
	KeyScanIndex   = "scan_index"   // rolling metadata list
)

// Cache TTLs for the volatile tier. Durable entries carry no TTL.
const (
	ProgressTTL = time.Hour
	ScanTTL     = 30 * 24 * time.Hour
)

// ScanKey returns the cache key for one full scan record.
func ScanKey(scanID string) string {
	return "scan:" + scanID
}

// ProgressKey returns the cache key for one scan's progress snapshot.
func ProgressKey(scanID string) string {
	return "scan_progress:" + scanID
}

// KV is one storage tier with simple get/set semantics. There are no
// cross-key transactions; concurrent writers to different keys never
// conflict.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
