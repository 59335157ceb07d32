// Package publisher bridges a push-based device position feed to the relay,
// deriving heading and speed from consecutive fixes.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/domain"
	"github.com/couchcryptid/friend-location-relay/internal/observability"
	"github.com/golang/geo/s2"
	"github.com/jonboulle/clockwork"
)

// Sample is one fix delivered by a position feed. Heading and Speed are
// optional; Timestamp may be zero, in which case the receive time is used.
type Sample struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PositionFeed delivers samples for one entity until ctx ends or the
// channel is closed by the feed.
type PositionFeed interface {
	Watch(ctx context.Context, entityID string) (<-chan Sample, error)
}

// UpdateFunc receives the raw coordinates of every accepted sample.
type UpdateFunc func(lat, lon float64)

// ErrorPolicy decides whether a failed upsert ends the subscription.
type ErrorPolicy int

const (
	// ContinueOnError reports the failure and keeps the subscription open.
	ContinueOnError ErrorPolicy = iota
	// AbortOnError ends the subscription at the first failed upsert.
	AbortOnError
)

// ErrInvalidSample marks samples whose coordinates are out of range.
var ErrInvalidSample = errors.New("invalid sample")

// Handle identifies a subscription. The zero Handle is never issued.
type Handle uint64

type subscription struct {
	entityID string
	cancel   context.CancelFunc
	done     chan struct{}
}

// Publisher forwards feed samples to a LocationUpdater, one goroutine per
// subscription.
type Publisher struct {
	feed    PositionFeed
	updater domain.LocationUpdater
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	policy  ErrorPolicy
	onError func(entityID string, err error)

	mu   sync.Mutex
	next Handle
	subs map[Handle]*subscription
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithClock replaces the clock used to stamp samples that carry no timestamp.
func WithClock(c clockwork.Clock) Option {
	return func(p *Publisher) { p.clock = c }
}

// WithErrorPolicy selects continue-on-error (default) or abort-on-error.
// Invalid samples are always skipped, whatever the policy.
func WithErrorPolicy(policy ErrorPolicy) Option {
	return func(p *Publisher) { p.policy = policy }
}

// WithErrorHandler is called for every rejected sample and failed upsert.
func WithErrorHandler(fn func(entityID string, err error)) Option {
	return func(p *Publisher) { p.onError = fn }
}

// New creates a Publisher reading from feed and writing through updater.
func New(feed PositionFeed, updater domain.LocationUpdater, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Publisher {
	p := &Publisher{
		feed:    feed,
		updater: updater,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
		subs:    make(map[Handle]*subscription),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start subscribes to the feed for entityID. onUpdate may be nil.
func (p *Publisher) Start(ctx context.Context, entityID string, onUpdate UpdateFunc) (Handle, error) {
	if entityID == "" {
		return 0, fmt.Errorf("%w: friendId is required", domain.ErrValidation)
	}

	subCtx, cancel := context.WithCancel(ctx)
	samples, err := p.feed.Watch(subCtx, entityID)
	if err != nil {
		cancel()
		return 0, fmt.Errorf("watch %s: %w", entityID, err)
	}

	sub := &subscription{entityID: entityID, cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	p.next++
	h := p.next
	p.subs[h] = sub
	p.mu.Unlock()
	p.metrics.PublisherSubscriptions.Inc()

	p.logger.Info("live publishing started", "friend_id", entityID, "handle", h)
	go p.consume(subCtx, h, sub, samples, onUpdate)
	return h, nil
}

// Stop ends a subscription. Unknown or already stopped handles are ignored.
func (p *Publisher) Stop(h Handle) {
	p.mu.Lock()
	sub, ok := p.subs[h]
	p.mu.Unlock()
	if ok {
		sub.cancel()
	}
}

// Done returns a channel closed when the subscription has ended. Unknown
// handles yield an already closed channel.
func (p *Publisher) Done(h Handle) <-chan struct{} {
	p.mu.Lock()
	sub, ok := p.subs[h]
	p.mu.Unlock()
	if ok {
		return sub.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Close stops every subscription and waits for them to drain or ctx to end.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	subs := make([]*subscription, 0, len(p.subs))
	for _, sub := range p.subs {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
	for _, sub := range subs {
		select {
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *Publisher) consume(ctx context.Context, h Handle, sub *subscription, samples <-chan Sample, onUpdate UpdateFunc) {
	defer p.finish(h, sub)

	var t tracker
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-samples:
			if !ok {
				return
			}
			if !p.handle(ctx, sub.entityID, &t, s, onUpdate) {
				return
			}
		}
	}
}

// handle publishes one sample. It returns false when the subscription should end.
func (p *Publisher) handle(ctx context.Context, entityID string, t *tracker, s Sample, onUpdate UpdateFunc) bool {
	if !s2.LatLngFromDegrees(s.Latitude, s.Longitude).IsValid() {
		p.metrics.PublisherSamples.WithLabelValues("invalid").Inc()
		p.logger.Warn("skipping invalid sample", "friend_id", entityID, "latitude", s.Latitude, "longitude", s.Longitude)
		p.report(entityID, fmt.Errorf("%w: (%v, %v)", ErrInvalidSample, s.Latitude, s.Longitude))
		return true
	}

	at := s.Timestamp
	if at.IsZero() {
		at = p.clock.Now()
	}
	heading, speed := t.resolve(s, at)

	_, err := p.updater.UpsertLocation(ctx, domain.LocationUpdate{
		EntityID:  entityID,
		Latitude:  domain.Float(s.Latitude),
		Longitude: domain.Float(s.Longitude),
		Heading:   heading,
		Speed:     speed,
	})
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.metrics.PublisherSamples.WithLabelValues("error").Inc()
		p.logger.Warn("live location update failed", "friend_id", entityID, "error", err)
		p.report(entityID, err)
		if p.policy == AbortOnError {
			return false
		}
	} else {
		p.metrics.PublisherSamples.WithLabelValues("published").Inc()
	}

	if onUpdate != nil {
		onUpdate(s.Latitude, s.Longitude)
	}
	return true
}

func (p *Publisher) report(entityID string, err error) {
	if p.onError != nil {
		p.onError(entityID, err)
	}
}

func (p *Publisher) finish(h Handle, sub *subscription) {
	p.mu.Lock()
	delete(p.subs, h)
	p.mu.Unlock()

	sub.cancel()
	close(sub.done)
	p.metrics.PublisherSubscriptions.Dec()
	p.logger.Info("live publishing stopped", "friend_id", sub.entityID, "handle", h)
}
