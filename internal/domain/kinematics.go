package domain

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
)

const (
	// EarthRadiusKm is the mean Earth radius used for great-circle distances.
	EarthRadiusKm = 6371.0

	// KmPerDegree is the flat approximation used for short simulator steps.
	KmPerDegree = 111.0
)

func radians(deg float64) float64 {
	return (s1.Angle(deg) * s1.Degree).Radians()
}

// HaversineDistanceKm returns the great-circle distance between two points
// given in degrees.
func HaversineDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push a a hair past 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BearingDegrees returns the planar heading of a step, atan2(lonStep, latStep),
// in [0, 360). 0 is north, 90 is east. This is an approximation for short
// steps, not a great-circle initial bearing.
func BearingDegrees(latStep, lonStep float64) float64 {
	deg := math.Atan2(lonStep, latStep) * 180 / math.Pi
	return NormalizeHeading(deg)
}

// NormalizeHeading folds any angle in degrees into [0, 360).
func NormalizeHeading(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	// -1e-15 + 360 rounds to exactly 360.
	if h >= 360 {
		h = 0
	}
	return h
}

// SpeedKmh converts a distance covered over elapsed seconds into km/h.
// It returns 0 instead of NaN or Inf when nothing moved or no time passed.
func SpeedKmh(distanceKm, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 || distanceKm <= 0 {
		return 0
	}
	v := distanceKm / elapsedSeconds * 3600
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// StepDistanceKm approximates the length of a small step in degrees using
// 111 km per degree on both axes.
func StepDistanceKm(latStep, lonStep float64) float64 {
	return math.Hypot(latStep, lonStep) * KmPerDegree
}

// FormatDistance renders a distance for display: metres under 1 km,
// otherwise kilometres with one decimal.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%d m", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1f km", km)
}
