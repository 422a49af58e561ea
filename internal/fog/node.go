// Package fog implements the aggregation node: it buffers sensor
// readings from the message channel, runs local analysis per reading,
// and periodically aggregates and forwards to the central service over
// an authenticated channel, renewing credentials as they near expiry.
package fog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"iot-fog-pipeline/internal/data"
	"iot-fog-pipeline/internal/metrics"
	"iot-fog-pipeline/internal/storage"
)

// CommandPublisher publishes actuator commands on the message channel.
type CommandPublisher interface {
	Publish(topic string, payload []byte) error
}

// PublisherFunc adapts a function to CommandPublisher.
type PublisherFunc func(topic string, payload []byte) error

func (f PublisherFunc) Publish(topic string, payload []byte) error {
	return f(topic, payload)
}

// Config carries the node's tunables.
type Config struct {
	Region              string
	AggregationInterval time.Duration
	BufferCapacity      int
	TokenRenewalMargin  time.Duration
	ActuatorTopic       string

	// Local analysis thresholds.
	RegionalHeat      float64
	VibrationMean     float64
	VibrationWindow   int
	VibrationMinCount int
}

// Node is the aggregation node. The reading buffer is its own lock
// domain (the transport delivers messages concurrently); token state is
// touched only by the aggregation loop.
type Node struct {
	cfg       Config
	buffer    *storage.Ring[data.SensorReading]
	cloud     CloudAPI
	publisher CommandPublisher
	log       zerolog.Logger
	now       func() time.Time

	token       string
	tokenExpiry time.Time
}

func NewNode(cfg Config, cloud CloudAPI, publisher CommandPublisher, log zerolog.Logger) *Node {
	return &Node{
		cfg:       cfg,
		buffer:    storage.NewRing[data.SensorReading](cfg.BufferCapacity),
		cloud:     cloud,
		publisher: publisher,
		log:       log.With().Str("component", "fog-node").Logger(),
		now:       time.Now,
	}
}

// HandleMessage processes one inbound sensor message: parse, buffer,
// analyze. A malformed payload is logged and dropped; the subscription
// is unaffected.
func (n *Node) HandleMessage(topic string, payload []byte) {
	reading, err := data.ParseReading(payload, topic, n.now())
	if err != nil {
		n.log.Error().Err(err).Str("topic", topic).Msg("dropping sensor message")
		metrics.ReadingsDropped.Inc()
		return
	}

	n.buffer.Push(reading)
	metrics.ReadingsReceived.Inc()
	metrics.BufferSize.Set(float64(n.buffer.Len()))
	n.log.Debug().Str("topic", topic).Msg("reading buffered")

	n.localAnalysis(reading)
}

// localAnalysis emits regional warnings. It never mutates the buffer and
// never triggers a forward.
func (n *Node) localAnalysis(reading data.SensorReading) {
	if reading.Temperature != nil && *reading.Temperature > n.cfg.RegionalHeat {
		n.log.Warn().
			Float64("temperature", *reading.Temperature).
			Msg("regional alert: elevated temperature detected")
		n.SendActuatorCommand(data.ActuatorCommand{Cooler: 1})
	}

	var vibrations []float64
	for _, r := range n.buffer.Recent(n.cfg.VibrationWindow) {
		if r.Vibration != nil {
			vibrations = append(vibrations, *r.Vibration)
		}
	}
	if len(vibrations) >= n.cfg.VibrationMinCount {
		mean := 0.0
		for _, v := range vibrations {
			mean += v
		}
		mean /= float64(len(vibrations))
		if mean > n.cfg.VibrationMean {
			n.log.Warn().
				Float64("avg_vibration", mean).
				Msg("regional alert: excessive vibration across devices")
		}
	}
}

// SendActuatorCommand publishes a command on the actuator topic.
// Fire-and-forget: a publish failure is logged, never fatal.
func (n *Node) SendActuatorCommand(cmd data.ActuatorCommand) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		n.log.Error().Err(err).Msg("encoding actuator command")
		return
	}
	if err := n.publisher.Publish(n.cfg.ActuatorTopic, payload); err != nil {
		n.log.Error().Err(err).Msg("publishing actuator command")
		return
	}
	n.log.Info().Int("cooler", cmd.Cooler).Msg("actuator command sent")
}

// Run drives the aggregation cycle until ctx is cancelled. Buffered
// readings pending at shutdown are dropped.
func (n *Node) Run(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.AggregationInterval)
	defer ticker.Stop()

	n.log.Info().
		Dur("interval", n.cfg.AggregationInterval).
		Str("region", n.cfg.Region).
		Msg("aggregation loop started")

	for {
		select {
		case <-ctx.Done():
			n.log.Info().Msg("aggregation loop stopped")
			return
		case <-ticker.C:
			n.ForwardCycle()
		}
	}
}

// ForwardCycle runs one aggregation attempt: skip on empty buffer,
// aggregate, ensure a fresh token, forward. The buffer is cleared only
// on confirmed success; a 401 additionally discards the held token.
func (n *Node) ForwardCycle() {
	if n.buffer.Len() == 0 {
		n.log.Debug().Msg("buffer empty, nothing to forward")
		return
	}

	record := n.Aggregate()

	if err := n.ensureToken(); err != nil {
		n.log.Error().Err(err).Msg("authentication failed, retaining buffer for next cycle")
		metrics.ForwardAttempts.WithLabelValues("auth_failed").Inc()
		return
	}

	switch err := n.cloud.Forward(n.token, record); {
	case err == nil:
		n.buffer.Clear()
		metrics.BufferSize.Set(0)
		metrics.ForwardAttempts.WithLabelValues("success").Inc()
		n.log.Info().
			Float64("avg_temperature", record.AvgTemperature).
			Int("samples", record.SamplesCount).
			Msg("aggregate forwarded")
	case errors.Is(err, ErrUnauthorized):
		n.token = ""
		metrics.ForwardAttempts.WithLabelValues("unauthorized").Inc()
		n.log.Error().Msg("token rejected by cloud, will re-authenticate next cycle")
	default:
		metrics.ForwardAttempts.WithLabelValues("error").Inc()
		n.log.Error().Err(err).Msg("forward failed, retaining buffer")
	}
}

// ensureToken renews the held token when it is absent or within the
// configured margin of expiry.
func (n *Node) ensureToken() error {
	if n.token != "" && n.now().Before(n.tokenExpiry.Add(-n.cfg.TokenRenewalMargin)) {
		return nil
	}

	n.log.Info().Msg("token absent or expiring, authenticating")
	token, expiry, err := n.cloud.Login()
	if err != nil {
		n.token = ""
		return err
	}
	n.token, n.tokenExpiry = token, expiry
	return nil
}

// Aggregate computes the summary record over the current buffer.
// Fields absent from individual readings are skipped per-statistic.
func (n *Node) Aggregate() data.AggregatedRecord {
	readings := n.buffer.Items()

	var (
		temps      []float64
		vibrations []float64
		presence   int
	)
	for _, r := range readings {
		if r.Temperature != nil {
			temps = append(temps, *r.Temperature)
		}
		if r.Vibration != nil {
			vibrations = append(vibrations, *r.Vibration)
		}
		if r.Presence != nil {
			presence += *r.Presence
		}
	}

	record := data.AggregatedRecord{
		PresenceCount: presence,
		SamplesCount:  len(readings),
		Timestamp:     n.now(),
		Region:        n.cfg.Region,
	}

	if len(temps) > 0 {
		record.AvgTemperature = mean(temps)
		record.MaxTemperature = temps[0]
		record.MinTemperature = temps[0]
		for _, t := range temps[1:] {
			if t > record.MaxTemperature {
				record.MaxTemperature = t
			}
			if t < record.MinTemperature {
				record.MinTemperature = t
			}
		}
	}
	if len(vibrations) > 0 {
		record.AvgVibration = mean(vibrations)
	}

	return record
}

// BufferLen reports the current number of buffered readings.
func (n *Node) BufferLen() int {
	return n.buffer.Len()
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
