package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/config"
	"github.com/couchcryptid/friend-location-relay/internal/observability"
	"github.com/couchcryptid/friend-location-relay/internal/publisher"
	kafkago "github.com/segmentio/kafka-go"
)

// subscriberBuffer is how many samples a slow subscriber may lag behind
// before newer samples are dropped for it.
const subscriberBuffer = 16

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// positionMessage is the JSON value of a device position message. The
// entity is taken from the message key, falling back to friendId.
type positionMessage struct {
	FriendID string `json:"friendId"`
	publisher.Sample
}

// Feed consumes device positions from one Kafka topic and fans them out to
// per-entity watchers. It implements publisher.PositionFeed.
type Feed struct {
	reader  messageReader
	logger  *slog.Logger
	metrics *observability.Metrics

	mu   sync.Mutex
	subs map[string]map[chan publisher.Sample]struct{}
}

// NewFeed creates a consumer-group reader on the configured feed topic.
func NewFeed(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Feed {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.FeedTopic,
		GroupID:  cfg.FeedGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return newFeed(r, logger, metrics)
}

func newFeed(r messageReader, logger *slog.Logger, metrics *observability.Metrics) *Feed {
	return &Feed{
		reader:  r,
		logger:  logger,
		metrics: metrics,
		subs:    make(map[string]map[chan publisher.Sample]struct{}),
	}
}

// Watch registers a watcher for entityID. The channel is closed when ctx ends.
func (f *Feed) Watch(ctx context.Context, entityID string) (<-chan publisher.Sample, error) {
	if entityID == "" {
		return nil, errors.New("entity id is required")
	}
	ch := make(chan publisher.Sample, subscriberBuffer)

	f.mu.Lock()
	if f.subs[entityID] == nil {
		f.subs[entityID] = make(map[chan publisher.Sample]struct{})
	}
	f.subs[entityID][ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs[entityID], ch)
		if len(f.subs[entityID]) == 0 {
			delete(f.subs, entityID)
		}
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}

// Run reads messages until ctx is cancelled, retrying fetch errors with
// exponential backoff.
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info("position feed started")

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		msg, err := f.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				f.logger.Info("position feed stopping", "reason", ctx.Err())
				return nil
			}
			f.logger.Error("read position message failed", "error", err, "retry_in", backoff)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond
		f.dispatch(msg)
	}
}

func (f *Feed) dispatch(msg kafkago.Message) {
	entityID, sample, err := decodePosition(msg)
	if err != nil {
		f.metrics.FeedMessages.WithLabelValues("invalid").Inc()
		f.logger.Warn("skipping position message", "error", err,
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	subs := f.subs[entityID]
	if len(subs) == 0 {
		f.metrics.FeedMessages.WithLabelValues("unrouted").Inc()
		return
	}
	for ch := range subs {
		select {
		case ch <- sample:
			f.metrics.FeedMessages.WithLabelValues("delivered").Inc()
		default:
			f.metrics.FeedMessages.WithLabelValues("dropped").Inc()
			f.logger.Warn("position watcher lagging, dropping sample", "friend_id", entityID)
		}
	}
}

func (f *Feed) Close() error {
	return f.reader.Close()
}

// decodePosition extracts the entity and sample from a message. A missing
// sample timestamp falls back to the message time.
func decodePosition(msg kafkago.Message) (string, publisher.Sample, error) {
	var pm positionMessage
	if err := json.Unmarshal(msg.Value, &pm); err != nil {
		return "", publisher.Sample{}, fmt.Errorf("decode position: %w", err)
	}
	entityID := string(msg.Key)
	if entityID == "" {
		entityID = pm.FriendID
	}
	if entityID == "" {
		return "", publisher.Sample{}, errors.New("position message has no entity id")
	}
	if pm.Timestamp.IsZero() {
		pm.Timestamp = msg.Time
	}
	return entityID, pm.Sample, nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
