package domain

import (
	"context"
	"time"
)

// Key namespaces in the key-value store.
const (
	LocationPrefix = "friend_location:"
	WeatherPrefix  = "friend_weather:"
	StormPrefix    = "storm:"
)

// LastSeenNow is the presence label stamped on every location write.
const LastSeenNow = "Just now"

// LocationUpdate is an incoming position report for one friend.
// Latitude and Longitude are pointers so that an explicit 0 is
// distinguishable from an omitted field.
type LocationUpdate struct {
	EntityID  string   `json:"friendId" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Label     string   `json:"location,omitempty"`
	Heading   *float64 `json:"heading,omitempty" validate:"omitempty,gte=0,lte=360"`
	Speed     *float64 `json:"speed,omitempty" validate:"omitempty,gte=0"`
}

// LocationRecord is the last-known position of a friend.
type LocationRecord struct {
	EntityID   string    `json:"friendId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Label      string    `json:"location,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	CapturedAt time.Time `json:"timestamp"`
	LastSeen   string    `json:"lastSeen,omitempty"`
}

// WeatherSnapshot is the last-known weather at a friend's location.
// Everything but EntityID is optional and stored as received.
type WeatherSnapshot struct {
	EntityID  string    `json:"friendId" validate:"required"`
	Temp      *float64  `json:"temp,omitempty"`
	Condition string    `json:"condition,omitempty"`
	Humidity  *float64  `json:"humidity,omitempty"`
	WindSpeed *float64  `json:"windSpeed,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StormLocation places a storm system on the map.
type StormLocation struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Area string  `json:"area,omitempty"`
}

// StormUpdate is an incoming storm report.
type StormUpdate struct {
	StormID       string         `json:"stormId" validate:"required"`
	Name          string         `json:"name,omitempty"`
	Category      string         `json:"category,omitempty"`
	Status        string         `json:"status,omitempty"`
	WindSpeed     *float64       `json:"windSpeed,omitempty"`
	Location      *StormLocation `json:"location,omitempty"`
	Movement      string         `json:"movement,omitempty"`
	Pressure      *float64       `json:"pressure,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	AffectedAreas []string       `json:"affectedAreas,omitempty"`
	NextUpdate    string         `json:"nextUpdate,omitempty"`
	Severity      string         `json:"severity,omitempty"`
}

// StormRecord is a tracked storm system keyed by its identifier.
type StormRecord struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	Category      string         `json:"category,omitempty"`
	Status        string         `json:"status,omitempty"`
	WindSpeed     *float64       `json:"windSpeed,omitempty"`
	Location      *StormLocation `json:"location,omitempty"`
	Movement      string         `json:"movement,omitempty"`
	Pressure      *float64       `json:"pressure,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	AffectedAreas []string       `json:"affectedAreas,omitempty"`
	NextUpdate    string         `json:"nextUpdate,omitempty"`
	Severity      string         `json:"severity,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// LocationUpdater accepts position updates. The relay service implements it
// in-process and the relay HTTP client implements it remotely.
type LocationUpdater interface {
	UpsertLocation(ctx context.Context, update LocationUpdate) (LocationRecord, error)
}

// NewLocationRecord builds the stored form of a validated update stamped at now.
func NewLocationRecord(u LocationUpdate) LocationRecord {
	rec := LocationRecord{
		EntityID:   u.EntityID,
		Label:      u.Label,
		Speed:      u.Speed,
		CapturedAt: Now(),
		LastSeen:   LastSeenNow,
	}
	if u.Latitude != nil {
		rec.Latitude = *u.Latitude
	}
	if u.Longitude != nil {
		rec.Longitude = *u.Longitude
	}
	if u.Heading != nil {
		rec.Heading = Float(NormalizeHeading(*u.Heading))
	}
	return rec
}

// LocationKey returns the store key for a friend's location.
func LocationKey(entityID string) string { return LocationPrefix + entityID }

// WeatherKey returns the store key for a friend's weather snapshot.
func WeatherKey(entityID string) string { return WeatherPrefix + entityID }

// StormKey returns the store key for a storm.
func StormKey(stormID string) string { return StormPrefix + stormID }

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 { return &v }
