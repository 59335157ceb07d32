// Package relay implements the location relay: create, read, update and
// delete of friend locations, friend weather snapshots and storms over a
// key-value store, one document per key.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/domain"
	"github.com/couchcryptid/friend-location-relay/internal/observability"
	"github.com/couchcryptid/friend-location-relay/internal/store"
)

// ChangeSink receives an event after every successful write. Delivery
// failures are logged and never fail the write itself.
type ChangeSink interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

// Health is the liveness payload.
type Health struct {
	Status string `json:"status"`
}

// Service is the location relay. It holds no state between calls; every
// operation is a single point read, write, delete or prefix scan.
type Service struct {
	store    store.Store
	geocoder domain.Geocoder
	changes  ChangeSink
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Option customizes a Service.
type Option func(*Service)

// WithGeocoder fills empty location labels by reverse geocoding.
func WithGeocoder(g domain.Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

// WithChangeSink publishes a change event after each write.
func WithChangeSink(c ChangeSink) Option {
	return func(s *Service) { s.changes = c }
}

// NewService creates a relay over st.
func NewService(st store.Store, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	s := &Service{
		store:   st,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertLocation validates the update, stamps it with the current time and
// overwrites the friend's previous location.
func (s *Service) UpsertLocation(ctx context.Context, update domain.LocationUpdate) (rec domain.LocationRecord, err error) {
	defer s.observe("upsert_location", time.Now(), &err)

	if err := update.Validate(); err != nil {
		return domain.LocationRecord{}, err
	}
	update = domain.EnrichLabel(ctx, update, s.geocoder, s.logger)
	rec = domain.NewLocationRecord(update)

	if err := s.put(ctx, domain.KindLocation, rec.EntityID, domain.LocationKey(rec.EntityID), rec); err != nil {
		return domain.LocationRecord{}, err
	}
	return rec, nil
}

// GetLocation returns the friend's last-known location.
func (s *Service) GetLocation(ctx context.Context, entityID string) (rec domain.LocationRecord, err error) {
	defer s.observe("get_location", time.Now(), &err)

	err = s.get(ctx, domain.LocationKey(entityID), "friend "+entityID, &rec)
	return rec, err
}

// ListLocations returns every stored location in store scan order.
func (s *Service) ListLocations(ctx context.Context) (recs []domain.LocationRecord, err error) {
	defer s.observe("list_locations", time.Now(), &err)

	return scanAll[domain.LocationRecord](ctx, s, domain.LocationPrefix)
}

// DeleteLocation removes the friend's location. Unknown friends are not an error.
func (s *Service) DeleteLocation(ctx context.Context, entityID string) (err error) {
	defer s.observe("delete_location", time.Now(), &err)

	if err := s.store.Delete(ctx, domain.LocationKey(entityID)); err != nil {
		return s.storeFailure("delete", domain.LocationKey(entityID), err)
	}
	s.emit(ctx, domain.ChangeEvent{
		Kind:       domain.KindLocation,
		Op:         domain.OpDelete,
		ID:         entityID,
		OccurredAt: domain.Now(),
	})
	return nil
}

// UpsertWeather stores a weather snapshot for a friend. Only the friend id
// is required; every other field is kept as received.
func (s *Service) UpsertWeather(ctx context.Context, snap domain.WeatherSnapshot) (rec domain.WeatherSnapshot, err error) {
	defer s.observe("upsert_weather", time.Now(), &err)

	if err := snap.Validate(); err != nil {
		return domain.WeatherSnapshot{}, err
	}
	snap.Timestamp = domain.Now()

	if err := s.put(ctx, domain.KindWeather, snap.EntityID, domain.WeatherKey(snap.EntityID), snap); err != nil {
		return domain.WeatherSnapshot{}, err
	}
	return snap, nil
}

// GetWeather returns the friend's last weather snapshot.
func (s *Service) GetWeather(ctx context.Context, entityID string) (rec domain.WeatherSnapshot, err error) {
	defer s.observe("get_weather", time.Now(), &err)

	err = s.get(ctx, domain.WeatherKey(entityID), "weather for "+entityID, &rec)
	return rec, err
}

// UpsertStorm stores a storm record, deriving its category from wind speed
// when none was given.
func (s *Service) UpsertStorm(ctx context.Context, update domain.StormUpdate) (rec domain.StormRecord, err error) {
	defer s.observe("upsert_storm", time.Now(), &err)

	if err := update.Validate(); err != nil {
		return domain.StormRecord{}, err
	}
	rec = domain.NewStormRecord(update)

	if err := s.put(ctx, domain.KindStorm, rec.ID, domain.StormKey(rec.ID), rec); err != nil {
		return domain.StormRecord{}, err
	}
	return rec, nil
}

// ListActiveStorms returns every stored storm.
func (s *Service) ListActiveStorms(ctx context.Context) (recs []domain.StormRecord, err error) {
	defer s.observe("list_storms", time.Now(), &err)

	return scanAll[domain.StormRecord](ctx, s, domain.StormPrefix)
}

// HealthCheck reports liveness. It succeeds whenever the process can answer
// and deliberately does not touch the store; see CheckReadiness.
func (s *Service) HealthCheck(context.Context) Health {
	return Health{Status: "ok"}
}

// CheckReadiness probes the store.
func (s *Service) CheckReadiness(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) put(ctx context.Context, kind, id, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", domain.ErrInternal, key, err)
	}
	if err := s.store.Set(ctx, key, data); err != nil {
		return s.storeFailure("set", key, err)
	}
	s.emit(ctx, domain.ChangeEvent{
		Kind:       kind,
		Op:         domain.OpUpsert,
		ID:         id,
		Payload:    data,
		OccurredAt: domain.Now(),
	})
	return nil
}

func (s *Service) get(ctx context.Context, key, what string, v any) error {
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	if err != nil {
		return s.storeFailure("get", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %w", domain.ErrInternal, key, err)
	}
	return nil
}

// scanAll decodes every document under prefix. Documents that no longer
// decode are logged and skipped so one bad value cannot hide the rest.
func scanAll[T any](ctx context.Context, s *Service, prefix string) ([]T, error) {
	values, err := s.store.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, s.storeFailure("scan", prefix, err)
	}
	out := make([]T, 0, len(values))
	for _, data := range values {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			s.logger.Warn("skipping undecodable document", "prefix", prefix, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) storeFailure(op, key string, err error) error {
	s.logger.Error("store operation failed", "op", op, "key", key, "error", err)
	return fmt.Errorf("%w: %s %s: %w", domain.ErrInternal, op, key, err)
}

func (s *Service) emit(ctx context.Context, event domain.ChangeEvent) {
	if s.changes == nil {
		return
	}
	if err := s.changes.Publish(ctx, event); err != nil {
		s.metrics.ChangeEvents.WithLabelValues("error").Inc()
		s.logger.Warn("change event publish failed",
			"kind", event.Kind,
			"op", event.Op,
			"id", event.ID,
			"error", err,
		)
		return
	}
	s.metrics.ChangeEvents.WithLabelValues("published").Inc()
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	s.metrics.RelayOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.metrics.RelayOperations.WithLabelValues(op, Outcome(*errp)).Inc()
}

// Outcome classifies an error for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
