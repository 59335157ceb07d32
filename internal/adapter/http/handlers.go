package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/couchcryptid/friend-location-relay/internal/domain"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.HealthCheck(r.Context()))
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.ListLocations(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if recs == nil {
		recs = []domain.LocationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"friends": recs})
}

func (s *Server) handleUpsertLocation(w http.ResponseWriter, r *http.Request) {
	var update domain.LocationUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.svc.UpsertLocation(r.Context(), update)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": rec})
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.GetLocation(r.Context(), r.PathValue("friendId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"location": rec})
}

func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteLocation(r.Context(), r.PathValue("friendId")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleGetWeather(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.GetWeather(r.Context(), r.PathValue("friendId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weather": snap})
}

func (s *Server) handleUpsertWeather(w http.ResponseWriter, r *http.Request) {
	var snap domain.WeatherSnapshot
	if err := decodeJSON(w, r, &snap); err != nil {
		s.writeError(w, err)
		return
	}
	stored, err := s.svc.UpsertWeather(r.Context(), snap)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": stored})
}

func (s *Server) handleListStorms(w http.ResponseWriter, r *http.Request) {
	storms, err := s.svc.ListActiveStorms(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if storms == nil {
		storms = []domain.StormRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"storms": storms})
}

func (s *Server) handleUpsertStorm(w http.ResponseWriter, r *http.Request) {
	var update domain.StormUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.svc.UpsertStorm(r.Context(), update)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": rec})
}

// decodeJSON reads exactly one JSON document into v. Syntax and type errors,
// and anything after the document, are reported as ErrBadRequest.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body: unexpected data after the JSON document", domain.ErrBadRequest)
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		// Already logged by the relay with the store details.
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
