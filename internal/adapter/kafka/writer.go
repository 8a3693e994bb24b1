package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/noise-map-service/internal/config"
	"github.com/couchcryptid/noise-map-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// SampleMessage is the JSON value of one published sample.
type SampleMessage struct {
	Seq         int64        `json:"seq"`
	Index       int          `json:"index"`
	Source      string       `json:"source"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Level       domain.Level `json:"level"`
	domain.Sample
}

// Writer produces snapshot samples to a Kafka topic.
// It implements feed.SnapshotLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured samples topic.
// Keys hash to a stable partition so each sample position stays ordered.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSamplesTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadSnapshot serializes and publishes every sample of a snapshot in a
// single WriteMessages call.
func (w *Writer) LoadSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if len(snap.Samples) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snap.Samples))
	for i := range snap.Samples {
		msg, err := serializeToMessage(snap, i)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write snapshot %d: %w", snap.Seq, err)
	}
	w.logger.Debug("snapshot written", "seq", snap.Seq, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// SampleKey is the message key of the sample at index i. Keys are positional:
// the same index refers to the same evolving sample across snapshots.
func SampleKey(i int) string {
	return "sample-" + strconv.Itoa(i)
}

// serializeToMessage marshals the i-th sample of a snapshot into a Kafka message.
func serializeToMessage(snap domain.Snapshot, i int) (kafkago.Message, error) {
	s := snap.Samples[i]
	data, err := json.Marshal(SampleMessage{
		Seq:         snap.Seq,
		Index:       i,
		Source:      snap.Source,
		GeneratedAt: snap.GeneratedAt,
		Level:       s.Level(),
		Sample:      s,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize sample %d: %w", i, err)
	}
	return kafkago.Message{
		Key:   []byte(SampleKey(i)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "level", Value: []byte(s.Level())},
			{Key: "generated_at", Value: []byte(snap.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
