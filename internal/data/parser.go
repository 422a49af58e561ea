package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedPayload marks a sensor message that could not be decoded.
// Callers log and drop the message; the subscription stays up.
var ErrMalformedPayload = errors.New("malformed sensor payload")

// ParseReading decodes a raw sensor message into a SensorReading, stamping
// it with the receipt time and source topic. Numeric fields may be absent;
// presence must be 0 or 1 when present.
func ParseReading(payload []byte, topic string, receivedAt time.Time) (SensorReading, error) {
	var raw struct {
		Temperature *float64 `json:"temperature"`
		Vibration   *float64 `json:"vibration"`
		Presence    *int     `json:"presence"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return SensorReading{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if raw.Presence != nil && *raw.Presence != 0 && *raw.Presence != 1 {
		return SensorReading{}, fmt.Errorf("%w: presence must be 0 or 1, got %d", ErrMalformedPayload, *raw.Presence)
	}

	return SensorReading{
		Temperature: raw.Temperature,
		Vibration:   raw.Vibration,
		Presence:    raw.Presence,
		ReceivedAt:  receivedAt,
		SourceTopic: topic,
	}, nil
}
