// Package events connects the pipeline to Kafka: incident events in, run
// outcomes and outbound messages out.
package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/kiranshivaraju/rescuedesk/internal/pipeline"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

// Processor runs one incident to completion.
type Processor interface {
	Process(ctx context.Context, event models.IncidentEvent) (*pipeline.Result, error)
}

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads incident events and feeds them to the pipeline with bounded
// concurrency. A message is committed once it has been handled, whatever the
// outcome; redeliveries are absorbed by the pipeline's dedupe window.
type Consumer struct {
	reader    MessageReader
	processor Processor
	validate  *validator.Validate
	workers   int
}

// NewReader returns a consumer-group reader for the incidents topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// NewConsumer creates a new Consumer. workers below 1 is treated as 1.
func NewConsumer(r MessageReader, p Processor, workers int) *Consumer {
	if workers < 1 {
		workers = 1
	}
	return &Consumer{
		reader:    r,
		processor: p,
		validate:  validator.New(),
		workers:   workers,
	}
}

// Run consumes until ctx is cancelled or the reader fails. In-flight incidents
// are allowed to finish before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(c.workers)

	var fetchErr error
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
				fetchErr = err
			}
			break
		}

		g.Go(func() error {
			c.handle(ctx, msg)
			if err := c.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
				slog.Error("commit failed", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			}
			return nil
		})
	}

	_ = g.Wait()
	return fetchErr
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	event, err := DecodeIncident(c.validate, msg.Value)
	if err != nil {
		slog.Warn("dropping incident event", "offset", msg.Offset, "error", err)
		return
	}

	// The run outlives a shutdown signal so its state is not left dangling.
	result, err := c.processor.Process(context.WithoutCancel(ctx), event)
	switch {
	case errors.Is(err, pipeline.ErrDuplicateIncident):
		slog.Info("duplicate incident skipped", "customer_id", event.CustomerID, "transcript_id", event.TranscriptID)
	case err != nil:
		attrs := []any{"customer_id", event.CustomerID, "error", err}
		if result != nil && result.Run != nil {
			attrs = append(attrs, "run_id", result.Run.ID)
		}
		slog.Error("incident processing failed", attrs...)
	default:
		slog.Debug("incident processed", "run_id", result.Run.ID, "state", result.Run.State)
	}
}
