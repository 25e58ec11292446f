// Package messaging provides the customer communication channels.
package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/rescuedesk/internal/collab"
)

// Receipt statuses reported by the channels in this package.
const (
	StatusLogged = "logged"
	StatusQueued = "queued"
)

// LogMessenger writes messages to the structured log instead of delivering
// them. Used in development.
type LogMessenger struct{}

func (LogMessenger) Send(_ context.Context, msg collab.Message) (collab.Receipt, error) {
	slog.Info("customer message",
		"recipient", msg.Recipient,
		"channel", msg.Channel,
		"subject", msg.Subject,
		"body_len", len(msg.Body),
	)
	return collab.Receipt{Status: StatusLogged}, nil
}

// Sender publishes a keyed JSON payload. *events.Producer satisfies it.
type Sender interface {
	Send(ctx context.Context, key string, v any) error
}

// QueueMessenger hands messages to an outbound topic for a separate delivery
// worker. Messages are keyed by recipient so one customer's messages stay ordered.
type QueueMessenger struct {
	sender Sender
}

// NewQueueMessenger creates a new QueueMessenger.
func NewQueueMessenger(s Sender) *QueueMessenger {
	return &QueueMessenger{sender: s}
}

func (m *QueueMessenger) Send(ctx context.Context, msg collab.Message) (collab.Receipt, error) {
	if err := m.sender.Send(ctx, msg.Recipient, msg); err != nil {
		return collab.Receipt{}, fmt.Errorf("%w: %w", collab.ErrDeliveryFailure, err)
	}
	return collab.Receipt{Status: StatusQueued}, nil
}

var (
	_ collab.Messenger = LogMessenger{}
	_ collab.Messenger = (*QueueMessenger)(nil)
)
