// Package simulator drives a synthetic friend along a straight line between
// two coordinates, publishing one position per step at a fixed cadence.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/domain"
	"github.com/couchcryptid/friend-location-relay/internal/observability"
	"github.com/golang/geo/s2"
	"github.com/jonboulle/clockwork"
)

// DefaultSteps is the number of intervals a route is split into.
const DefaultSteps = 20

// ErrorPolicy decides what a failed publish does to the rest of the run.
type ErrorPolicy int

const (
	// ContinueOnError reports the failure and moves on to the next step.
	ContinueOnError ErrorPolicy = iota
	// AbortOnError stops the run at the first failure.
	AbortOnError
)

// Route is one simulated journey. Steps of 0 means DefaultSteps.
type Route struct {
	EntityID string        `json:"friendId"`
	StartLat float64       `json:"startLat"`
	StartLon float64       `json:"startLon"`
	EndLat   float64       `json:"endLat"`
	EndLon   float64       `json:"endLon"`
	Duration time.Duration `json:"-"`
	Steps    int           `json:"steps,omitempty"`
}

// Report summarizes a run. Attempted counts publishes tried, which is
// Steps+1 for a run that was neither cancelled nor aborted.
type Report struct {
	Attempted int
	Published int
	Failed    int
}

// StepError wraps the failure that aborted a run.
type StepError struct {
	Step int
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("simulation step %d: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Simulator publishes interpolated positions through a LocationUpdater.
// A Simulator holds no per-run state and may run many routes concurrently.
type Simulator struct {
	updater domain.LocationUpdater
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	policy  ErrorPolicy
	onError func(step int, err error)
	steps   int
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Simulator) { s.clock = c }
}

// WithErrorPolicy selects continue-on-error (default) or abort-on-error.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(s *Simulator) { s.policy = p }
}

// WithErrorHandler is called for every failed publish, whatever the policy.
func WithErrorHandler(fn func(step int, err error)) Option {
	return func(s *Simulator) { s.onError = fn }
}

// WithDefaultSteps overrides DefaultSteps for routes that leave Steps at 0.
func WithDefaultSteps(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.steps = n
		}
	}
}

// New creates a Simulator that publishes through updater.
func New(updater domain.LocationUpdater, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Simulator {
	s := &Simulator{
		updater: updater,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
		steps:   DefaultSteps,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Normalize fills defaults and checks the route.
func (s *Simulator) Normalize(r Route) (Route, error) {
	if r.Steps == 0 {
		r.Steps = s.steps
	}
	switch {
	case r.EntityID == "":
		return r, fmt.Errorf("%w: friendId is required", domain.ErrValidation)
	case r.Steps < 0:
		return r, fmt.Errorf("%w: steps must be positive", domain.ErrValidation)
	case r.Duration < 0:
		return r, fmt.Errorf("%w: duration must not be negative", domain.ErrValidation)
	case !s2.LatLngFromDegrees(r.StartLat, r.StartLon).IsValid():
		return r, fmt.Errorf("%w: start coordinates out of range", domain.ErrValidation)
	case !s2.LatLngFromDegrees(r.EndLat, r.EndLon).IsValid():
		return r, fmt.Errorf("%w: end coordinates out of range", domain.ErrValidation)
	}
	return r, nil
}

// Run publishes Steps+1 positions from start to end inclusive, waiting
// Duration/Steps between consecutive publishes. Cancelling ctx stops the run
// and leaves the last published position in place.
func (s *Simulator) Run(ctx context.Context, r Route) (Report, error) {
	var report Report

	r, err := s.Normalize(r)
	if err != nil {
		return report, err
	}

	n := float64(r.Steps)
	latStep := (r.EndLat - r.StartLat) / n
	lonStep := (r.EndLon - r.StartLon) / n
	interval := r.Duration / time.Duration(r.Steps)

	// The path is a straight line, so heading and speed are the same at every step.
	heading := domain.BearingDegrees(latStep, lonStep)
	speed := math.Round(domain.SpeedKmh(domain.StepDistanceKm(latStep, lonStep), interval.Seconds()))

	s.logger.Info("simulation started",
		"friend_id", r.EntityID,
		"steps", r.Steps,
		"interval", interval,
		"heading", heading,
		"speed_kmh", speed,
	)

	for i := 0; i <= r.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		lat := r.StartLat + latStep*float64(i)
		lon := r.StartLon + lonStep*float64(i)
		if i == r.Steps {
			lat, lon = r.EndLat, r.EndLon
		}

		report.Attempted++
		_, err := s.updater.UpsertLocation(ctx, domain.LocationUpdate{
			EntityID:  r.EntityID,
			Latitude:  domain.Float(lat),
			Longitude: domain.Float(lon),
			Heading:   domain.Float(heading),
			Speed:     domain.Float(speed),
		})
		if err != nil {
			report.Failed++
			s.metrics.SimulationSteps.WithLabelValues("error").Inc()
			s.logger.Warn("simulation step failed", "friend_id", r.EntityID, "step", i, "error", err)
			if s.onError != nil {
				s.onError(i, err)
			}
			if s.policy == AbortOnError {
				return report, &StepError{Step: i, Err: err}
			}
		} else {
			report.Published++
			s.metrics.SimulationSteps.WithLabelValues("published").Inc()
		}

		if i < r.Steps && !s.wait(ctx, interval) {
			return report, ctx.Err()
		}
	}

	s.logger.Info("simulation finished",
		"friend_id", r.EntityID,
		"published", report.Published,
		"failed", report.Failed,
	)
	return report, nil
}

// wait blocks for d on the simulator clock. It returns false if ctx ends first.
func (s *Simulator) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
