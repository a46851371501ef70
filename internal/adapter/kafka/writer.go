package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/export"
)

// messageWriter is the subset of *kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes each rendered document as one Kafka message keyed by its
// document name.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		// Country chart documents exceed the 1 MiB default.
		BatchBytes: 16 << 20,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Write publishes the whole batch in a single WriteMessages call.
func (w *Writer) Write(ctx context.Context, b *export.Batch) error {
	if len(b.Documents) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(b.Documents))
	for i, doc := range b.Documents {
		msgs[i] = documentToMessage(b, doc)
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d documents: %w", len(msgs), err)
	}
	w.logger.Info("documents published", "count", len(msgs), "run_id", b.RunID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func documentToMessage(b *export.Batch, doc export.Document) kafkago.Message {
	return kafkago.Message{
		Key:   []byte(doc.Name),
		Value: doc.Body,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(b.RunID)},
			{Key: "generated_at", Value: []byte(b.GeneratedAt.Format(time.RFC3339))},
			{Key: "tier", Value: []byte(doc.Tier.String())},
		},
	}
}
