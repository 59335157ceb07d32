package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/friend-location-relay/internal/domain"
	"github.com/couchcryptid/friend-location-relay/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGeocoder struct {
	calls  int
	result domain.GeocodingResult
	err    error
}

func (m *countingGeocoder) ReverseGeocode(context.Context, float64, float64) (domain.GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func newCached(inner domain.Geocoder, size int) *CachedGeocoder {
	return NewCachedGeocoder(inner, size, observability.NewMetricsForTesting())
}

func TestCachedGeocoder_HitWithinCell(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{PlaceName: "Makati"}}
	cached := newCached(inner, 10)

	r1, err := cached.ReverseGeocode(context.Background(), 14.55470, 121.02440)
	require.NoError(t, err)
	// Two metres away, same cell.
	r2, err := cached.ReverseGeocode(context.Background(), 14.55471, 121.02441)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedGeocoder_MissAcrossCells(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{PlaceName: "Pasig"}}
	cached := newCached(inner, 10)

	_, _ = cached.ReverseGeocode(context.Background(), 14.5764, 121.0851)
	_, _ = cached.ReverseGeocode(context.Background(), 14.5800, 121.0851)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_EmptyNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := newCached(inner, 10)

	_, _ = cached.ReverseGeocode(context.Background(), 0, 0)
	_, _ = cached.ReverseGeocode(context.Background(), 0, 0)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_ErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("timeout")}
	cached := newCached(inner, 10)

	_, err := cached.ReverseGeocode(context.Background(), 14.6, 121.0)
	require.Error(t, err)
	_, err = cached.ReverseGeocode(context.Background(), 14.6, 121.0)
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRU[string, int](2)
	c.put("a", 1)
	c.put("b", 2)

	// Touch a so b becomes the oldest.
	_, ok := c.get("a")
	require.True(t, ok)

	c.put("c", 3)
	assert.Equal(t, 2, c.size())

	_, ok = c.get("b")
	assert.False(t, ok)
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestLRU_UpdateExisting(t *testing.T) {
	c := newLRU[string, int](2)
	c.put("a", 1)
	c.put("a", 10)

	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assert.Equal(t, 1, c.size())
}

func TestLRU_MinimumSize(t *testing.T) {
	c := newLRU[int, int](0)
	c.put(1, 1)
	c.put(2, 2)
	assert.Equal(t, 1, c.size())
}
