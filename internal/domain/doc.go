// Package domain models the records relayed between friends' devices and the
// weather dashboard, together with the kinematics derived from successive
// position samples.
//
// # Records
//
// Three record kinds live in the key-value store, each as a per-entity
// singleton that is fully overwritten on every write:
//
//	LocationRecord   friend_location:<friendId>
//	WeatherSnapshot  friend_weather:<friendId>
//	StormRecord      storm:<stormId>
//
// No history is kept and nothing expires. A weather snapshot is never
// refreshed by a location change; callers link the two themselves.
//
// # Kinematics
//
// Distances use the haversine formula with an Earth radius of 6371 km.
// Heading is a planar approximation, atan2(Δlon, Δlat) in degrees normalized
// into [0, 360). It is only meaningful for short steps and is kept because
// downstream consumers were built against its values; it is not a
// navigation-grade initial bearing.
//
// Speed is km/h and is defined as zero whenever the elapsed time or the
// distance is zero, so no caller ever sees NaN or Inf.
//
// # Storm classification
//
// When a storm arrives without a category, one is derived from its
// sustained wind speed (km/h):
//
//	> 118  Typhoon                high
//	>  88  Severe Tropical Storm  high
//	>  62  Tropical Storm         medium
//	else   Tropical Depression    low
package domain
