package http

import (
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func (s *Server) handleLocationsGeoJSON(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.ListLocations(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, rec := range recs {
		f := geojson.NewFeature(orb.Point{rec.Longitude, rec.Latitude})
		f.ID = rec.EntityID
		f.Properties["friendId"] = rec.EntityID
		f.Properties["timestamp"] = rec.CapturedAt
		if rec.Label != "" {
			f.Properties["location"] = rec.Label
		}
		if rec.Heading != nil {
			f.Properties["heading"] = *rec.Heading
		}
		if rec.Speed != nil {
			f.Properties["speed"] = *rec.Speed
		}
		fc.Append(f)
	}
	writeGeoJSON(w, fc)
}

func (s *Server) handleStormsGeoJSON(w http.ResponseWriter, r *http.Request) {
	storms, err := s.svc.ListActiveStorms(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, storm := range storms {
		// Storms without a position cannot be placed on a map.
		if storm.Location == nil {
			continue
		}
		f := geojson.NewFeature(orb.Point{storm.Location.Lon, storm.Location.Lat})
		f.ID = storm.ID
		f.Properties["id"] = storm.ID
		f.Properties["name"] = storm.Name
		f.Properties["category"] = storm.Category
		f.Properties["severity"] = storm.Severity
		if storm.WindSpeed != nil {
			f.Properties["windSpeed"] = *storm.WindSpeed
		}
		if storm.Location.Area != "" {
			f.Properties["area"] = storm.Location.Area
		}
		fc.Append(f)
	}
	writeGeoJSON(w, fc)
}

func writeGeoJSON(w http.ResponseWriter, fc *geojson.FeatureCollection) {
	body, err := fc.MarshalJSON()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck // best-effort response
}
