package service

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huifen-rgb/vibe-coding-remover/config"
	"github.com/huifen-rgb/vibe-coding-remover/model"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*CachedResult
	gets    int
	failGet bool
	onGet   func()
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*CachedResult{}}
}

func (m *memoryCache) GetResult(_ context.Context, key string) (*CachedResult, error) {
	if m.onGet != nil {
		m.onGet()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.failGet {
		return nil, errors.New("connection refused")
	}
	return m.entries[key], nil
}

func (m *memoryCache) SetResult(_ context.Context, key string, result *CachedResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = result
	return nil
}

func newTestMatte(cache ResultCache) *MatteService {
	return NewMatteService(&config.MatteConfig{MaxConcurrent: 2, QueueTimeout: 5}, cache)
}

func excludeAllIncludeBox(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.Layers.Set(model.Layer{Kind: model.LayerExclude, Rects: []model.Rect{rect(0, 0, 800, 600)}}))
	require.NoError(t, s.Layers.Set(model.Layer{Kind: model.LayerInclude, Rects: []model.Rect{rect(100, 100, 200, 200)}}))
}

func TestMatteCompositeStoresResult(t *testing.T) {
	s := newSession("m1")
	s.Load(loadSource(t, 1600, 1200, 255))
	excludeAllIncludeBox(t, s)

	p, err := newTestMatte(nil).Composite(context.Background(), s)
	require.NoError(t, err)

	assert.Same(t, p, s.Processed())
	assert.Equal(t, 1600, p.Result.Width)
	assert.Equal(t, model.BBox{X: 200, Y: 200, Width: 400, Height: 400}, p.Result.Foreground)
	assert.InDelta(t, 400.0*400/(1600*1200), p.Result.Coverage, 1e-9)
	assert.False(t, p.Result.Cached)
	assert.Equal(t, s.Layers.Snapshot().Digest(), p.Result.Digest)
	assert.Equal(t, uint8(0), p.Image.NRGBAAt(100, 100).A)
	assert.Equal(t, uint8(255), p.Image.NRGBAAt(300, 300).A)
}

func TestMatteCompositeRepeatedRunsStartFromPristine(t *testing.T) {
	s := newSession("m1")
	s.Load(loadSource(t, 200, 100, 255))
	pristine := append([]uint8(nil), s.Source().Original.Pix...)
	m := newTestMatte(nil)

	require.NoError(t, s.Layers.Set(model.Layer{Kind: model.LayerExclude, Rects: []model.Rect{rect(0, 0, 50, 50)}}))
	first, err := m.Composite(context.Background(), s)
	require.NoError(t, err)
	again, err := m.Composite(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, first.Image.Pix, again.Image.Pix)

	// dropping the exclude layer must bring the pixels back
	s.Layers.Reset()
	cleared, err := m.Composite(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, pristine, cleared.Image.Pix)
	assert.Equal(t, pristine, s.Source().Original.Pix)
}

func TestMatteCompositeUsesCache(t *testing.T) {
	cache := newMemoryCache()
	m := newTestMatte(cache)
	s := newSession("m1")
	s.Load(loadSource(t, 1600, 1200, 255))
	excludeAllIncludeBox(t, s)

	first, err := m.Composite(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, first.Result.Cached)
	assert.Len(t, cache.entries, 1)

	second, err := m.Composite(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, second.Result.Cached)
	assert.Equal(t, first.Image.Pix, second.Image.Pix)
	assert.Equal(t, first.Result.Foreground, second.Result.Foreground)
	assert.Same(t, second, s.Processed())
}

func TestMatteCacheKeyIncludesDisplayGeometry(t *testing.T) {
	cache := newMemoryCache()
	m := newTestMatte(cache)
	data := encodePNG(t, solidNRGBA(1600, 1200, 255))

	wide, err := LoadImage(data, 800, DecodeLimit{})
	require.NoError(t, err)
	narrow, err := LoadImage(data, 400, DecodeLimit{})
	require.NoError(t, err)
	require.Equal(t, wide.Fingerprint, narrow.Fingerprint)
	assert.NotEqual(t,
		ResultKey(wide.Fingerprint, wide.Geometry, "d"),
		ResultKey(narrow.Fingerprint, narrow.Geometry, "d"))

	s1 := newSession("m1")
	s1.Load(wide)
	excludeAllIncludeBox(t, s1)
	first, err := m.Composite(context.Background(), s1)
	require.NoError(t, err)

	s2 := newSession("m2")
	s2.Load(narrow)
	excludeAllIncludeBox(t, s2)
	second, err := m.Composite(context.Background(), s2)
	require.NoError(t, err)

	assert.False(t, second.Result.Cached)
	assert.Len(t, cache.entries, 2)
	assert.Equal(t, model.BBox{X: 200, Y: 200, Width: 400, Height: 400}, first.Result.Foreground)
	assert.Equal(t, model.BBox{X: 400, Y: 400, Width: 800, Height: 800}, second.Result.Foreground)
}

func TestMatteCacheHitDiscardedWhenSourceChanges(t *testing.T) {
	cache := newMemoryCache()
	m := newTestMatte(cache)
	s := newSession("m1")
	s.Load(loadSource(t, 40, 40, 255))

	_, err := m.Composite(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, cache.entries, 1)

	replacement := loadSource(t, 40, 40, 254)
	cache.onGet = func() { s.Load(replacement) }

	_, err = m.Composite(context.Background(), s)
	assert.ErrorIs(t, err, ErrCompositeFailed)
	assert.Nil(t, s.Processed())
	assert.Same(t, replacement, s.Source())
}

func TestMatteCompositeIgnoresCacheErrors(t *testing.T) {
	cache := newMemoryCache()
	cache.failGet = true
	s := newSession("m1")
	s.Load(loadSource(t, 10, 10, 255))

	p, err := newTestMatte(cache).Composite(context.Background(), s)
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Equal(t, 1, cache.gets)
}

func TestMatteCompositeFailureKeepsPreviousResult(t *testing.T) {
	m := newTestMatte(nil)
	s := newSession("m1")
	s.Load(loadSource(t, 40, 40, 255))
	require.NoError(t, s.Layers.Set(model.Layer{Kind: model.LayerExclude, Rects: []model.Rect{rect(0, 0, 10, 10)}}))

	prev, err := m.Composite(context.Background(), s)
	require.NoError(t, err)

	m.composite = func(CompositeInput) (*image.NRGBA, []model.Warning, error) {
		panic("index out of range")
	}
	require.NoError(t, s.Layers.Set(model.Layer{Kind: model.LayerInclude, Rects: []model.Rect{rect(0, 0, 5, 5)}}))

	_, err = m.Composite(context.Background(), s)
	assert.ErrorIs(t, err, ErrCompositeFailed)
	assert.Same(t, prev, s.Processed())
	assert.True(t, s.Layers.Has(model.LayerInclude))

	m.composite = func(CompositeInput) (*image.NRGBA, []model.Warning, error) {
		return nil, nil, errors.New("boom")
	}
	_, err = m.Composite(context.Background(), s)
	assert.Error(t, err)
	assert.Same(t, prev, s.Processed())
}

func TestMatteCompositeReportsDimensionMismatch(t *testing.T) {
	s := newSession("m1")
	s.Load(loadSource(t, 1600, 1200, 255))
	require.NoError(t, s.Layers.Set(model.Layer{Kind: model.LayerRefine, Stroke: model.NewStrokeMask(10, 10)}))

	p, err := newTestMatte(nil).Composite(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, p.Result.Warnings, 1)
	assert.Equal(t, WarnLayerDimensionMismatch, p.Result.Warnings[0].Code)
}

func TestMatteCompositeWithoutImage(t *testing.T) {
	_, err := newTestMatte(nil).Composite(context.Background(), newSession("m1"))
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestMatteCompositeQueueFull(t *testing.T) {
	m := NewMatteService(&config.MatteConfig{MaxConcurrent: 1}, nil)
	m.semaphore <- struct{}{}
	defer func() { <-m.semaphore }()

	s := newSession("m1")
	s.Load(loadSource(t, 4, 4, 255))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Composite(ctx, s)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Nil(t, s.Processed())
}
