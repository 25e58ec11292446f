package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
)

// ErrMalformedEvent is returned for payloads that are not a valid incident event.
var ErrMalformedEvent = errors.New("malformed incident event")

// DecodeIncident parses and validates one incident event payload.
func DecodeIncident(v *validator.Validate, data []byte) (models.IncidentEvent, error) {
	var event models.IncidentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return models.IncidentEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := v.Struct(event); err != nil {
		return models.IncidentEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return event, nil
}
