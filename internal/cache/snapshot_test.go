package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/core"
	"doordashboard/internal/normalize"
	"doordashboard/internal/storage"
)

type fakeSource struct {
	mu      sync.Mutex
	doc     storage.Document
	marker  storage.Marker
	loadErr error
	delay   time.Duration
	loads   atomic.Int32
}

func newFakeSource(sessions ...core.RawSession) *fakeSource {
	return &fakeSource{
		doc:    storage.Document{Sessions: sessions},
		marker: storage.Marker{ModTime: time.Unix(1, 0), Size: 1, Exists: true},
	}
}

func (f *fakeSource) Marker() (storage.Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marker, nil
}

func (f *fakeSource) Load(ctx context.Context) (storage.Document, storage.Marker, error) {
	f.loads.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return storage.Document{}, storage.Marker{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc, f.marker, f.loadErr
}

func (f *fakeSource) replace(sessions ...core.RawSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc = storage.Document{Sessions: sessions}
	f.marker.Size++
}

func sampleRaw() []core.RawSession {
	return []core.RawSession{
		{"date": "2024-01-02", "deliveries_count": 1, "deliveries": []any{
			map[string]any{"restaurant": "McDonald's", "doordash_pay": "$4.00", "tip": "2,50", "total": 6.5},
		}},
		{"date": "2024-01-03", "challenge_bonus": 10},
	}
}

func TestController_LoadsOnceWhileFresh(t *testing.T) {
	src := newFakeSource(sampleRaw()...)
	c := NewController(src, normalize.New(nil), Options{})

	first, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	second, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.loads.Load())
	assert.Len(t, first.Sessions, 2)
}

func TestController_ConcurrentReadersShareOneReload(t *testing.T) {
	src := newFakeSource(sampleRaw()...)
	src.delay = 50 * time.Millisecond
	c := NewController(src, nil, Options{})

	var wg sync.WaitGroup
	snaps := make([]*Snapshot, 20)
	for i := range snaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.Snapshot(context.Background())
			assert.NoError(t, err)
			snaps[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.loads.Load())
	for _, s := range snaps {
		assert.Same(t, snaps[0], s)
	}
}

func TestController_ReloadsOnMarkerChange(t *testing.T) {
	src := newFakeSource(sampleRaw()...)
	c := NewController(src, nil, Options{})

	before, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	src.replace(sampleRaw()[0])
	after, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Len(t, before.Sessions, 2)
	assert.Len(t, after.Sessions, 1)
	assert.Greater(t, after.Version, before.Version)
}

func TestController_IdempotentReload(t *testing.T) {
	src := newFakeSource(sampleRaw()...)
	c := NewController(src, nil, Options{})

	first, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	c.Invalidate()
	second, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), src.loads.Load())
	assert.Equal(t, aggregate.Compute(first.Sessions), aggregate.Compute(second.Sessions))
}

func TestController_StoreUnavailableServesEmpty(t *testing.T) {
	src := newFakeSource()
	src.loadErr = storage.ErrStoreUnavailable

	var observed error
	c := NewController(src, nil, Options{Observer: func(_ *Snapshot, _ time.Duration, err error) { observed = err }})

	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Sessions)
	assert.ErrorIs(t, snap.LoadErr, storage.ErrStoreUnavailable)
	assert.ErrorIs(t, observed, storage.ErrStoreUnavailable)

	// unchanged marker: no reload storm
	_, err = c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.loads.Load())
}

func TestController_ReloadTimeout(t *testing.T) {
	src := newFakeSource(sampleRaw()...)
	src.delay = time.Second
	c := NewController(src, nil, Options{ReloadTimeout: 20 * time.Millisecond})

	_, err := c.Snapshot(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReloadTimeout))
	assert.Nil(t, c.current.Load())
}

func TestController_CallerCancellation(t *testing.T) {
	src := newFakeSource(sampleRaw()...)
	src.delay = 200 * time.Millisecond
	c := NewController(src, nil, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrReloadTimeout)

	// the detached reload still completes for later callers
	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Sessions, 2)
}
