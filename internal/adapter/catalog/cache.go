package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	geojson "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/airtemp-calibration/internal/domain"
	"github.com/couchcryptid/airtemp-calibration/internal/observability"
)

// Source is the catalog query surface the cache decorates.
type Source interface {
	Boundaries(ctx context.Context, dataset, field, value string) (*geojson.FeatureCollection, error)
	Granules(ctx context.Context, dataset string, window domain.TimeWindow, bands []string) ([]domain.Granule, error)
}

// CachedSource wraps a Source with an in-memory LRU cache. The three
// calibration branches share one loaded reanalysis series, so repeated
// granule queries inside a run are cheap cache hits.
type CachedSource struct {
	inner   Source
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a catalog source.
func NewCachedSource(inner Source, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSource) Boundaries(ctx context.Context, dataset, field, value string) (*geojson.FeatureCollection, error) {
	key := fmt.Sprintf("boundaries:%s|%s|%s", dataset, field, value)
	if cached, ok := c.cache.get(key); ok {
		c.metrics.CatalogCache.WithLabelValues("boundaries", "hit").Inc()
		return cached.(*geojson.FeatureCollection), nil
	}
	c.metrics.CatalogCache.WithLabelValues("boundaries", "miss").Inc()

	fc, err := c.inner.Boundaries(ctx, dataset, field, value)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so a late-arriving dataset can be retried.
	if len(fc.Features) > 0 {
		c.cache.put(key, fc)
	}
	return fc, nil
}

func (c *CachedSource) Granules(ctx context.Context, dataset string, window domain.TimeWindow, bands []string) ([]domain.Granule, error) {
	key := fmt.Sprintf("granules:%s|%s|%s|%s",
		dataset,
		window.Start.UTC().Format("2006-01-02"),
		window.End.UTC().Format("2006-01-02"),
		strings.Join(bands, ","),
	)
	if cached, ok := c.cache.get(key); ok {
		c.metrics.CatalogCache.WithLabelValues("granules", "hit").Inc()
		return cached.([]domain.Granule), nil
	}
	c.metrics.CatalogCache.WithLabelValues("granules", "miss").Inc()

	granules, err := c.inner.Granules(ctx, dataset, window, bands)
	if err != nil {
		return nil, err
	}
	if len(granules) > 0 {
		c.cache.put(key, granules)
	}
	return granules, nil
}

// lruCache is a simple thread-safe LRU cache for catalog responses.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value any
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *lruCache) pushFront(e *entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if c.head == e {
		c.head = e.next
	}
	if c.tail == e {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	evicted := c.tail
	c.unlink(evicted)
	delete(c.entries, evicted.key)
}
