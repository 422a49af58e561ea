package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iot-fog-pipeline/internal/config"
	"iot-fog-pipeline/internal/fog"
	"iot-fog-pipeline/internal/logging"
	"iot-fog-pipeline/internal/mqtt"
)

func main() {
	configPath := flag.String("config", ".", "Path to the configuration file directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging).With().Str("service", "fog").Logger()

	if cfg.Fog.Username == "" || cfg.Fog.Password == "" {
		log.Fatal().Msg("fog.username and fog.password must be configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cloud := fog.NewCloudClient(cfg.Fog.CloudURL, cfg.Fog.Username, cfg.Fog.Password, cfg.Fog.ForwardTimeout, log)

	var client paho.Client
	node := fog.NewNode(fog.Config{
		Region:              cfg.Fog.Region,
		AggregationInterval: cfg.Fog.AggregationInterval,
		BufferCapacity:      cfg.Fog.BufferCapacity,
		TokenRenewalMargin:  cfg.Fog.TokenRenewalMargin,
		ActuatorTopic:       cfg.MQTT.ActuatorTopic,
		RegionalHeat:        cfg.Analysis.RegionalHeat,
		VibrationMean:       cfg.Analysis.VibrationMean,
		VibrationWindow:     cfg.Analysis.VibrationWindow,
		VibrationMinCount:   cfg.Analysis.VibrationMinCount,
	}, cloud, fog.PublisherFunc(func(topic string, payload []byte) error {
		return mqtt.Publish(client, topic, byte(cfg.MQTT.QoS), payload)
	}), log)

	client = mqtt.BuildClient(mqtt.Options{
		BrokerURL:      cfg.MQTT.BrokerURL,
		ClientID:       "fog-node",
		SubscribeTopic: cfg.MQTT.SensorTopic,
		QoS:            byte(cfg.MQTT.QoS),
		OnMessage: func(_ paho.Client, msg paho.Message) {
			node.HandleMessage(msg.Topic(), msg.Payload())
		},
	}, log)

	if err := mqtt.ConnectWithBackoff(ctx, client, 2*time.Second, 30*time.Second, log); err != nil {
		log.Fatal().Err(err).Msg("connecting to broker")
	}

	go node.Run(ctx)

	// Fog-side metrics on a local listener.
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Fog.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	cancel()
	client.Disconnect(250)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)
	log.Info().Msg("stopped")
}
