package messaging

import (
	"fmt"

	"github.com/kiranshivaraju/rescuedesk/internal/collab"
)

// Channels lists the implementations NewMessenger can build from.
type Channels struct {
	// Backoffice delivers through the back-office gateway's /messages endpoint.
	Backoffice collab.Messenger
	// Outbound publishes to the outbound messages topic.
	Outbound Sender
}

// NewMessenger constructs the messenger named by channel.
// Called once at server startup.
func NewMessenger(channel string, ch Channels) (collab.Messenger, error) {
	switch channel {
	case "log":
		return LogMessenger{}, nil
	case "http":
		if ch.Backoffice == nil {
			return nil, fmt.Errorf("messaging channel http needs a back-office client")
		}
		return ch.Backoffice, nil
	case "kafka":
		if ch.Outbound == nil {
			return nil, fmt.Errorf("messaging channel kafka needs an outbound producer")
		}
		return NewQueueMessenger(ch.Outbound), nil
	default:
		return nil, fmt.Errorf("unknown messaging channel %q: must be one of log, http, kafka", channel)
	}
}
