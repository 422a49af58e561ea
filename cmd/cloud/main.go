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

	"iot-fog-pipeline/internal/api"
	"iot-fog-pipeline/internal/auth"
	"iot-fog-pipeline/internal/config"
	"iot-fog-pipeline/internal/logging"
	"iot-fog-pipeline/internal/predictor"
	"iot-fog-pipeline/internal/websocket"
)

func main() {
	configPath := flag.String("config", ".", "Path to the configuration file directory")
	hashPassword := flag.String("hash", "", "Print the bcrypt hash of the given password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hashing password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging).With().Str("service", "cloud").Logger()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("auth.jwt_secret must be configured")
	}
	if len(cfg.Auth.Users) == 0 {
		log.Fatal().Msg("auth.users must not be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	authManager := auth.NewManager(cfg.Auth)
	pred := predictor.New(predictor.Config{
		WindowCapacity: cfg.Predictor.WindowCapacity,
		MinPoints:      cfg.Predictor.MinPoints,
		Horizon:        cfg.Predictor.Horizon,
		RiskThreshold:  cfg.Alerting.HighTemperature,
	}, log)

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	service := api.NewService(cfg.Storage.HistoryCapacity, api.Thresholds{
		HighTemperature:    cfg.Alerting.HighTemperature,
		WarningTemperature: cfg.Alerting.WarningTemperature,
	}, pred, hub, log)

	handler := api.NewHandler(service, authManager, hub, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("central ingestion service listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("stopped")
}
