package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/config"
	"github.com/couchcryptid/friend-location-relay/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// ChangeWriter publishes record change events to a Kafka topic.
// It implements relay.ChangeSink.
type ChangeWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewChangeWriter creates a Kafka producer for the configured change topic.
func NewChangeWriter(cfg *config.Config, logger *slog.Logger) *ChangeWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.ChangeTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &ChangeWriter{writer: w, logger: logger}
}

// Publish writes one change event. Events for the same record share a key,
// so they land on one partition in order.
func (w *ChangeWriter) Publish(ctx context.Context, event domain.ChangeEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *ChangeWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ChangeEvent into a Kafka message.
func serializeToMessage(event domain.ChangeEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize change event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Kind + ":" + event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "op", Value: []byte(event.Op)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
