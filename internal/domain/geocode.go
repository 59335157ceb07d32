package domain

import (
	"context"
	"log/slog"
)

// EnrichLabel fills an empty place label on a location update by reverse
// geocoding its coordinates. A nil geocoder, a provider failure or an empty
// answer leave the update untouched (graceful degradation).
func EnrichLabel(ctx context.Context, update LocationUpdate, geocoder Geocoder, logger *slog.Logger) LocationUpdate {
	if geocoder == nil || update.Label != "" {
		return update
	}
	if update.Latitude == nil || update.Longitude == nil {
		return update
	}

	result, err := geocoder.ReverseGeocode(ctx, *update.Latitude, *update.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"friend_id", update.EntityID,
			"lat", *update.Latitude,
			"lon", *update.Longitude,
			"error", err,
		)
		return update
	}

	switch {
	case result.PlaceName != "":
		update.Label = result.PlaceName
	case result.FormattedAddress != "":
		update.Label = result.FormattedAddress
	}
	return update
}
