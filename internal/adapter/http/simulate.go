package http

import (
	"net/http"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/domain"
	"github.com/couchcryptid/friend-location-relay/internal/simulator"
)

type simulateRequest struct {
	EntityID        string   `json:"friendId" validate:"required"`
	StartLat        *float64 `json:"startLat" validate:"required,latitude"`
	StartLon        *float64 `json:"startLon" validate:"required,longitude"`
	EndLat          *float64 `json:"endLat" validate:"required,latitude"`
	EndLon          *float64 `json:"endLon" validate:"required,longitude"`
	DurationSeconds float64  `json:"durationSeconds" validate:"gte=0"`
	Steps           int      `json:"steps" validate:"gte=0"`
}

func (s *Server) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := domain.ValidateStruct(req); err != nil {
		s.writeError(w, err)
		return
	}

	route := simulator.Route{
		EntityID: req.EntityID,
		StartLat: *req.StartLat,
		StartLon: *req.StartLon,
		EndLat:   *req.EndLat,
		EndLon:   *req.EndLon,
		Duration: time.Duration(req.DurationSeconds * float64(time.Second)),
		Steps:    req.Steps,
	}
	id, err := s.sims.Start(route)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "id": id})
}

func (s *Server) handleStopSimulation(w http.ResponseWriter, r *http.Request) {
	stopped := s.sims.Stop(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stopped": stopped})
}

func (s *Server) handleListSimulations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"simulations": s.sims.Active()})
}
