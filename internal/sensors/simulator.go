// Package sensors simulates a field of telemetry sensors publishing on
// the message channel. Glue for exercising the pipeline end to end.
package sensors

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"iot-fog-pipeline/internal/data"
)

// Publisher is the outbound side of the message channel.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(topic string, payload []byte) error

func (f PublisherFunc) Publish(topic string, payload []byte) error {
	return f(topic, payload)
}

type Config struct {
	SensorTopic   string
	ActuatorTopic string
	Interval      time.Duration
	// Cooler command is published alongside each reading: on above
	// CoolerThreshold, off below.
	CoolerThreshold float64
}

type Simulator struct {
	cfg       Config
	publisher Publisher
	rand      *rand.Rand
	log       zerolog.Logger
}

func NewSimulator(cfg Config, publisher Publisher, log zerolog.Logger) *Simulator {
	return &Simulator{
		cfg:       cfg,
		publisher: publisher,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       log.With().Str("component", "sensors").Logger(),
	}
}

// reading mirrors the sensor wire format.
type reading struct {
	Temperature float64 `json:"temperature"`
	Vibration   float64 `json:"vibration"`
	Presence    int     `json:"presence"`
}

func (s *Simulator) next() reading {
	return reading{
		Temperature: 20 + s.rand.Float64()*20,
		Vibration:   s.rand.Float64() * 10,
		Presence:    s.rand.Intn(2),
	}
}

// Run publishes simulated readings until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("simulator stopped")
			return
		case <-ticker.C:
			s.publishOnce()
		}
	}
}

func (s *Simulator) publishOnce() {
	r := s.next()

	cooler := data.ActuatorCommand{Cooler: 0}
	if r.Temperature > s.cfg.CoolerThreshold {
		cooler.Cooler = 1
	}
	if payload, err := json.Marshal(cooler); err == nil {
		if err := s.publisher.Publish(s.cfg.ActuatorTopic, payload); err != nil {
			s.log.Error().Err(err).Msg("publishing cooler command")
		}
	}

	payload, err := json.Marshal(r)
	if err != nil {
		s.log.Error().Err(err).Msg("encoding reading")
		return
	}
	if err := s.publisher.Publish(s.cfg.SensorTopic, payload); err != nil {
		s.log.Error().Err(err).Msg("publishing reading")
		return
	}
	s.log.Info().
		Float64("temperature", r.Temperature).
		Float64("vibration", r.Vibration).
		Int("presence", r.Presence).
		Msg("reading published")
}
