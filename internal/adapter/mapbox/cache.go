package mapbox

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/couchcryptid/friend-location-relay/internal/domain"
	"github.com/couchcryptid/friend-location-relay/internal/observability"
)

// cellScale snaps coordinates to a grid of 1e-4 degrees (about 11 m), so a
// friend idling in one spot hits the cache instead of the API.
const cellScale = 1e4

type cell struct{ lat, lon int64 }

func cellOf(lat, lon float64) cell {
	return cell{lat: int64(math.Round(lat * cellScale)), lon: int64(math.Round(lon * cellScale))}
}

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed by grid cell.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lru[cell, domain.GeocodingResult]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRU[cell, domain.GeocodingResult](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := cellOf(lat, lon)
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Empty answers are not cached so a later call can retry.
	if result.PlaceName != "" || result.FormattedAddress != "" {
		c.cache.put(key, result)
	}
	return result, nil
}

// lru is a mutex-guarded LRU map. The front of order is the most recently used.
type lru[K comparable, V any] struct {
	max   int
	mu    sync.Mutex
	items map[K]*list.Element
	order *list.List
}

type lruItem[K comparable, V any] struct {
	key   K
	value V
}

func newLRU[K comparable, V any](maxEntries int) *lru[K, V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lru[K, V]{
		max:   maxEntries,
		items: make(map[K]*list.Element),
		order: list.New(),
	}
}

func (c *lru[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruItem[K, V]).value, true
}

func (c *lru[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*lruItem[K, V]).value = value
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&lruItem[K, V]{key: key, value: value})

	if c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruItem[K, V]).key)
	}
}

func (c *lru[K, V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
