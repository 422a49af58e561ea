package data

import "time"

// SensorReading is a single telemetry sample as delivered on the sensor
// topic, tagged with receipt metadata. Fields absent from the payload
// stay nil; aggregation skips them per-field.
type SensorReading struct {
	Temperature *float64  `json:"temperature,omitempty"`
	Vibration   *float64  `json:"vibration,omitempty"`
	Presence    *int      `json:"presence,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
	SourceTopic string    `json:"source"`
}

// AggregatedRecord is one aggregation cycle's summary of the fog buffer.
// Immutable once computed.
type AggregatedRecord struct {
	AvgTemperature float64   `json:"avg_temperature"`
	MaxTemperature float64   `json:"max_temperature"`
	MinTemperature float64   `json:"min_temperature"`
	AvgVibration   float64   `json:"avg_vibration"`
	PresenceCount  int       `json:"presence_count"`
	SamplesCount   int       `json:"samples_count"`
	Timestamp      time.Time `json:"timestamp"`
	Region         string    `json:"region"`
}

// IngestedRecord is an AggregatedRecord as stored by the cloud after
// authentication: server-stamped and attributed to the sending node.
type IngestedRecord struct {
	AggregatedRecord
	IngestedAt time.Time `json:"ingested_at"`
	Node       string    `json:"node"`
}

// Alert severities and types.
const (
	SeverityHigh    = "high"
	SeverityWarning = "warning"

	AlertHighTemperature    = "high_temperature"
	AlertWarningTemperature = "warning_temperature"
)

type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
	Value     float64   `json:"value"`
}

// ActuatorCommand is published on the actuator topic. Cooler is 1 to
// switch the cooler on, 0 to switch it off.
type ActuatorCommand struct {
	Cooler int `json:"cooler"`
}
