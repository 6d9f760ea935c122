package eventbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const envelopeVersion = 1

// Envelope is the stable JSON structure published for forwarded events.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope wraps evt with a fresh event id.
func NewEnvelope(evt Event) (Envelope, error) {
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return Envelope{}, err
	}
	occurred := evt.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		EventType:  evt.Name,
		OccurredAt: occurred,
		Data:       data,
	}, nil
}
