package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iot-fog-pipeline/internal/config"
	"iot-fog-pipeline/internal/logging"
	"iot-fog-pipeline/internal/mqtt"
	"iot-fog-pipeline/internal/sensors"
)

func main() {
	configPath := flag.String("config", ".", "Path to the configuration file directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging).With().Str("service", "sensors").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := mqtt.BuildClient(mqtt.Options{
		BrokerURL: cfg.MQTT.BrokerURL,
		ClientID:  "sensor-sim",
	}, log)

	if err := mqtt.ConnectWithBackoff(ctx, client, 2*time.Second, 30*time.Second, log); err != nil {
		log.Fatal().Err(err).Msg("connecting to broker")
	}

	sim := sensors.NewSimulator(sensors.Config{
		SensorTopic:     cfg.MQTT.SensorTopic,
		ActuatorTopic:   cfg.MQTT.ActuatorTopic,
		Interval:        cfg.Sensors.PublishInterval,
		CoolerThreshold: cfg.Alerting.WarningTemperature,
	}, sensors.PublisherFunc(func(topic string, payload []byte) error {
		return mqtt.Publish(client, topic, byte(cfg.MQTT.QoS), payload)
	}), log)

	go sim.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	client.Disconnect(250)
	log.Info().Msg("stopped")
}
