package catalog

import (
	"context"
	"testing"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/airtemp-calibration/internal/domain"
)

// --- mock for cache tests ---

type countingSource struct {
	boundaryCalls int
	granuleCalls  int
	fc            *geojson.FeatureCollection
	granules      []domain.Granule
}

func (m *countingSource) Boundaries(_ context.Context, _, _, _ string) (*geojson.FeatureCollection, error) {
	m.boundaryCalls++
	return m.fc, nil
}

func (m *countingSource) Granules(_ context.Context, _ string, _ domain.TimeWindow, _ []string) ([]domain.Granule, error) {
	m.granuleCalls++
	return m.granules, nil
}

func nonEmptyFeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewPolygonFeature([][][]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}})
	f.SetProperty("BIOME", "Pantanal")
	fc.AddFeature(f)
	return fc
}

func oneGranule(t *testing.T) []domain.Granule {
	t.Helper()
	grid := domain.Grid{Rows: 1, Cols: 1, West: 0, North: 1, CellSize: 1}
	raster, err := domain.NewRaster(grid, []float64{7500})
	require.NoError(t, err)
	return []domain.Granule{{
		Start: time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC),
		Bands: map[string]domain.Raster{"LST_Day_1km": raster},
	}}
}

// --- CachedSource tests ---

func TestCachedSource_GranuleCacheHit(t *testing.T) {
	inner := &countingSource{granules: oneGranule(t)}
	cached := NewCachedSource(inner, 10, testMetrics())

	window := testWindow()
	_, err := cached.Granules(context.Background(), "MODIS/061/MOD11A1", window, []string{"LST_Day_1km"})
	require.NoError(t, err)

	again, err := cached.Granules(context.Background(), "MODIS/061/MOD11A1", window, []string{"LST_Day_1km"})
	require.NoError(t, err)

	require.Len(t, again, 1)
	assert.Equal(t, 1, inner.granuleCalls, "should only call inner once")
}

func TestCachedSource_BoundaryCacheHit(t *testing.T) {
	inner := &countingSource{fc: nonEmptyFeatureCollection()}
	cached := NewCachedSource(inner, 10, testMetrics())

	_, err := cached.Boundaries(context.Background(), "MapBiomas/biomes-2019", "BIOME", "Pantanal")
	require.NoError(t, err)
	_, err = cached.Boundaries(context.Background(), "MapBiomas/biomes-2019", "BIOME", "Pantanal")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.boundaryCalls, "should only call inner once")
}

func TestCachedSource_DifferentKeysMiss(t *testing.T) {
	inner := &countingSource{granules: oneGranule(t)}
	cached := NewCachedSource(inner, 10, testMetrics())

	window := testWindow()
	_, _ = cached.Granules(context.Background(), "MODIS/061/MOD11A1", window, []string{"LST_Day_1km"})
	_, _ = cached.Granules(context.Background(), "MODIS/061/MOD11A1", window, []string{"LST_Night_1km"})
	_, _ = cached.Granules(context.Background(), "ECMWF/ERA5/DAILY", window, []string{"LST_Day_1km"})

	assert.Equal(t, 3, inner.granuleCalls)
}

func TestCachedSource_EmptyResultsNotCached(t *testing.T) {
	inner := &countingSource{fc: geojson.NewFeatureCollection()}
	cached := NewCachedSource(inner, 10, testMetrics())

	_, _ = cached.Boundaries(context.Background(), "MapBiomas/biomes-2019", "BIOME", "Pantanal")
	_, _ = cached.Boundaries(context.Background(), "MapBiomas/biomes-2019", "BIOME", "Pantanal")

	assert.Equal(t, 2, inner.boundaryCalls, "empty responses must be retried")
}

func TestLRUCache_Eviction(t *testing.T) {
	cache := newLRUCache(2)
	cache.put("a", 1)
	cache.put("b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := cache.get("a")
	require.True(t, ok)

	cache.put("c", 3)

	_, ok = cache.get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = cache.get("a")
	assert.True(t, ok)
	_, ok = cache.get("c")
	assert.True(t, ok)
}
