package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Shivanand-hulikatti/event-admission/internal/config"
)

// KafkaSender writes messages to a topic keyed by dedupe key, so redeliveries
// of one logical notification land on the same partition.
type KafkaSender struct {
	writer *kafka.Writer
}

// NewKafkaSender builds a writer for cfg.Topic. Brokers are dialled lazily.
func NewKafkaSender(cfg config.KafkaConfig) *KafkaSender {
	return &KafkaSender{writer: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

// Send writes msg keyed by its dedupe key.
func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.DedupeKey),
		Value:   value,
		Time:    msg.SentAt,
		Headers: []kafka.Header{{Key: "type", Value: []byte(msg.Type)}},
	})
	if err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
