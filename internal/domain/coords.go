package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
)

// ParseLatLon reads a "lat,lon" pair in degrees, as given on command lines.
func ParseLatLon(s string) (lat, lon float64, err error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("expected lat,lon, got %q", s)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	if !s2.LatLngFromDegrees(lat, lon).IsValid() {
		return 0, 0, fmt.Errorf("%q is out of range", s)
	}
	return lat, lon, nil
}
