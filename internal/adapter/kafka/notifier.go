package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hazard-reference-service/internal/config"
	"github.com/couchcryptid/hazard-reference-service/internal/domain"
)

// Notifier publishes partition refresh events to a Kafka topic so downstream
// consumers can invalidate their own caches. It implements pipeline.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured refresh topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, logger: logger}
}

// refreshEvent is the wire format of a partition refresh notification.
type refreshEvent struct {
	Partition   string    `json:"partition"`
	RecordCount int       `json:"record_count"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// PartitionRefreshed publishes a single refresh notification. Failures are
// the caller's to log; a refresh is never rolled back over a lost message.
func (n *Notifier) PartitionRefreshed(ctx context.Context, key domain.PartitionKey, recordCount int, refreshedAt time.Time) error {
	msg, err := serializeRefresh(key, recordCount, refreshedAt)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish refresh for %q: %w", key, err)
	}
	n.logger.Debug("published partition refresh", "partition", key, "records", recordCount)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeRefresh marshals a refresh notification into a Kafka message keyed
// by partition, so per-partition ordering holds within the topic.
func serializeRefresh(key domain.PartitionKey, recordCount int, refreshedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(refreshEvent{
		Partition:   string(key),
		RecordCount: recordCount,
		RefreshedAt: refreshedAt.UTC(),
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize refresh event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "partition", Value: []byte(key)},
			{Key: "refreshed_at", Value: []byte(refreshedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
