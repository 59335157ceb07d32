package publisher

import (
	"math"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/domain"
)

// tracker holds the previous fix of one subscription.
type tracker struct {
	hasLast     bool
	lastLat     float64
	lastLon     float64
	lastTime    time.Time
	lastHeading *float64
}

// resolve returns the heading and speed to publish for s, then records s as
// the previous fix. Feed-provided values win over derived ones.
func (t *tracker) resolve(s Sample, at time.Time) (heading, speed *float64) {
	var calcHeading, calcSpeed *float64

	if t.hasLast {
		dist := domain.HaversineDistanceKm(t.lastLat, t.lastLon, s.Latitude, s.Longitude)
		calcSpeed = domain.Float(domain.SpeedKmh(dist, at.Sub(t.lastTime).Seconds()))

		latStep, lonStep := s.Latitude-t.lastLat, s.Longitude-t.lastLon
		if latStep != 0 || lonStep != 0 {
			calcHeading = domain.Float(domain.BearingDegrees(latStep, lonStep))
		} else {
			calcHeading = t.lastHeading
		}
	}

	heading = calcHeading
	if s.Heading != nil && !math.IsNaN(*s.Heading) {
		heading = s.Heading
	}
	speed = calcSpeed
	if s.Speed != nil && *s.Speed >= 0 {
		speed = s.Speed
	}

	if heading != nil {
		heading = domain.Float(domain.NormalizeHeading(math.Round(*heading)))
	}
	if speed != nil {
		speed = domain.Float(math.Round(*speed))
	}

	t.hasLast = true
	t.lastLat, t.lastLon = s.Latitude, s.Longitude
	t.lastTime = at
	t.lastHeading = heading
	return heading, speed
}
