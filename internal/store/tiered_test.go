package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKV is an in-memory tier with switchable failure modes.
type fakeKV struct {
	data     map[string][]byte
	ttls     map[string]time.Duration
	failGet  bool
	failSet  bool
	getCalls int
	setCalls int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	f.getCalls++
	if f.failGet {
		return nil, errors.New("tier down")
	}
	data, ok := f.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.setCalls++
	if f.failSet {
		return errors.New("tier down")
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func (f *fakeKV) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func TestTiered_GetPrefersCache(t *testing.T) {
	cache := newFakeKV()
	durable := newFakeKV()
	cache.data["scan:scan-1"] = []byte("cached")
	durable.data["scan:scan-1"] = []byte("durable")

	ts := NewTiered(cache, durable)

	data, err := ts.Get(context.Background(), "scan:scan-1")
	assert.NoError(t, err)
	assert.Equal(t, []byte("cached"), data)
	assert.Zero(t, durable.getCalls)
}

func TestTiered_GetFallsBackOnCacheMiss(t *testing.T) {
	cache := newFakeKV()
	durable := newFakeKV()
	durable.data["scan:scan-1"] = []byte("durable")

	ts := NewTiered(cache, durable)

	data, err := ts.Get(context.Background(), "scan:scan-1")
	assert.NoError(t, err)
	assert.Equal(t, []byte("durable"), data)
}

func TestTiered_GetBackfillsCache(t *testing.T) {
	cache := newFakeKV()
	durable := newFakeKV()
	durable.data["scan:scan-1"] = []byte("durable")

	ts := NewTiered(cache, durable)

	_, err := ts.Get(context.Background(), "scan:scan-1")
	require.NoError(t, err)

	assert.Equal(t, []byte("durable"), cache.data["scan:scan-1"])
	assert.Equal(t, ScanTTL, cache.ttls["scan:scan-1"])
}

func TestTiered_BackfillTTLByKeyClass(t *testing.T) {
	cache := newFakeKV()
	durable := newFakeKV()
	durable.data["scan_progress:scan-1"] = []byte("{}")
	durable.data[KeyScanHistory] = []byte("[]")

	ts := NewTiered(cache, durable)

	_, err := ts.Get(context.Background(), "scan_progress:scan-1")
	require.NoError(t, err)
	assert.Equal(t, ProgressTTL, cache.ttls["scan_progress:scan-1"])

	_, err = ts.Get(context.Background(), KeyScanHistory)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cache.ttls[KeyScanHistory])
}

func TestTiered_GetSurvivesCacheFailure(t *testing.T) {
	cache := newFakeKV()
	cache.failGet = true
	durable := newFakeKV()
	durable.data["scan:scan-1"] = []byte("durable")

	ts := NewTiered(cache, durable)

	data, err := ts.Get(context.Background(), "scan:scan-1")
	assert.NoError(t, err)
	assert.Equal(t, []byte("durable"), data)
}

func TestTiered_GetMissingEverywhere(t *testing.T) {
	ts := NewTiered(newFakeKV(), newFakeKV())

	_, err := ts.Get(context.Background(), "scan:missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTiered_SetWritesBothTiers(t *testing.T) {
	cache := newFakeKV()
	durable := newFakeKV()

	ts := NewTiered(cache, durable)

	err := ts.Set(context.Background(), "scan:scan-1", []byte("v"), ScanTTL)
	assert.NoError(t, err)
	assert.Equal(t, []byte("v"), cache.data["scan:scan-1"])
	assert.Equal(t, []byte("v"), durable.data["scan:scan-1"])
}

func TestTiered_SetCacheFailureIsNotFatal(t *testing.T) {
	cache := newFakeKV()
	cache.failSet = true
	durable := newFakeKV()

	ts := NewTiered(cache, durable)

	err := ts.Set(context.Background(), "scan:scan-1", []byte("v"), ScanTTL)
	assert.NoError(t, err)
	assert.Equal(t, []byte("v"), durable.data["scan:scan-1"])
}

func TestTiered_SetDurableFailureIsReported(t *testing.T) {
	durable := newFakeKV()
	durable.failSet = true

	ts := NewTiered(newFakeKV(), durable)

	err := ts.Set(context.Background(), "scan:scan-1", []byte("v"), ScanTTL)
	assert.Error(t, err)
}

func TestTiered_NilCacheDurableOnly(t *testing.T) {
	durable := newFakeKV()

	ts := NewTiered(nil, durable)

	ctx := context.Background()
	require.NoError(t, ts.Set(ctx, "scan:scan-1", []byte("v"), ScanTTL))

	data, err := ts.Get(ctx, "scan:scan-1")
	assert.NoError(t, err)
	assert.Equal(t, []byte("v"), data)
}

func TestTiered_KeysComeFromDurable(t *testing.T) {
	cache := newFakeKV()
	cache.data["scan:cache-only"] = []byte("v")
	durable := newFakeKV()
	durable.data["scan:durable-only"] = []byte("v")

	ts := NewTiered(cache, durable)

	keys, err := ts.Keys(context.Background(), "scan:")
	assert.NoError(t, err)
	assert.Equal(t, []string{"scan:durable-only"}, keys)
}
