package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kiranshivaraju/rescuedesk/pkg/models"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the producers use.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer sends JSON payloads to one topic.
type Producer struct {
	writer MessageWriter
}

// NewWriter returns a writer for topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

// NewProducer creates a new Producer.
func NewProducer(w MessageWriter) *Producer {
	return &Producer{writer: w}
}

// Send marshals v and writes it under key.
func (p *Producer) Send(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data}); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Publish sends a run outcome keyed by run id, so all outcomes of a run land
// on one partition.
func (p *Producer) Publish(ctx context.Context, outcome models.RunOutcome) error {
	return p.Send(ctx, outcome.RunID.String(), outcome)
}

// Close closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
