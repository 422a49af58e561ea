// Package api implements the central ingestion service: authenticated
// ingestion of aggregated records, threshold alerting, bounded history,
// trend prediction and the query surface.
package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"iot-fog-pipeline/internal/data"
	"iot-fog-pipeline/internal/metrics"
	"iot-fog-pipeline/internal/predictor"
	"iot-fog-pipeline/internal/storage"
	"iot-fog-pipeline/internal/websocket"
)

// Thresholds configures alert generation. Evaluation is a pure function
// of the current value; repeated sends of the same value alert again.
type Thresholds struct {
	HighTemperature    float64
	WarningTemperature float64
}

// Service owns all central-side state. There are no package globals:
// the instance is constructed at startup and injected into the handlers.
type Service struct {
	store      *storage.Ring[data.IngestedRecord]
	alerts     *storage.AlertLog
	predictor  *predictor.Predictor
	thresholds Thresholds
	hub        *websocket.Hub
	log        zerolog.Logger
	now        func() time.Time
}

func NewService(historyCapacity int, thresholds Thresholds, pred *predictor.Predictor, hub *websocket.Hub, log zerolog.Logger) *Service {
	return &Service{
		store:      storage.NewRing[data.IngestedRecord](historyCapacity),
		alerts:     storage.NewAlertLog(),
		predictor:  pred,
		thresholds: thresholds,
		hub:        hub,
		log:        log.With().Str("component", "ingestion").Logger(),
		now:        time.Now,
	}
}

// Ingest stamps and stores an aggregated record for the authenticated
// node, feeds the trend model, and evaluates alert thresholds on the
// record's average temperature.
func (s *Service) Ingest(node string, record data.AggregatedRecord) data.IngestedRecord {
	ingested := data.IngestedRecord{
		AggregatedRecord: record,
		IngestedAt:       s.now(),
		Node:             node,
	}

	s.store.Push(ingested)
	s.predictor.Observe(record.AvgTemperature)
	metrics.RecordsIngested.Inc()

	if alert := s.evaluateAlert(record.AvgTemperature, ingested.IngestedAt); alert != nil {
		s.alerts.Append(*alert)
		metrics.AlertsGenerated.WithLabelValues(alert.Severity).Inc()
		s.log.Warn().
			Str("type", alert.Type).
			Float64("value", alert.Value).
			Str("node", node).
			Msg(alert.Message)
		if s.hub != nil {
			s.hub.BroadcastAlert(*alert)
		}
	}

	if s.hub != nil {
		s.hub.BroadcastRecord(ingested)
	}

	return ingested
}

func (s *Service) evaluateAlert(value float64, ts time.Time) *data.Alert {
	switch {
	case value > s.thresholds.HighTemperature:
		return &data.Alert{
			ID:        uuid.NewString(),
			Type:      data.AlertHighTemperature,
			Message:   fmt.Sprintf("Critical temperature detected: %.2f°C", value),
			Timestamp: ts,
			Severity:  data.SeverityHigh,
			Value:     value,
		}
	case value > s.thresholds.WarningTemperature:
		return &data.Alert{
			ID:        uuid.NewString(),
			Type:      data.AlertWarningTemperature,
			Message:   fmt.Sprintf("Elevated temperature: %.2f°C", value),
			Timestamp: ts,
			Severity:  data.SeverityWarning,
			Value:     value,
		}
	}
	return nil
}

// History returns the most recent limit records in insertion order.
func (s *Service) History(limit int) []data.IngestedRecord {
	return s.store.Recent(limit)
}

// Alerts returns the most recent limit alerts in append order.
func (s *Service) Alerts(limit int) []data.Alert {
	return s.alerts.Recent(limit)
}

// Predict serves the trend forecast.
func (s *Service) Predict() (predictor.Forecast, error) {
	return s.predictor.Predict()
}

// StatusSummary is the /api/status response.
type StatusSummary struct {
	Status             string      `json:"status"`
	DataPoints         int         `json:"data_points"`
	Alerts             int         `json:"alerts"`
	HighAlerts         int         `json:"high_alerts"`
	WarningAlerts      int         `json:"warning_alerts"`
	LastUpdate         interface{} `json:"last_update"`
	CurrentTemperature interface{} `json:"current_temperature"`
}

const unavailable = "unavailable"

// Status summarizes record and alert counts plus the latest record.
func (s *Service) Status() StatusSummary {
	summary := StatusSummary{
		Status:             "operational",
		DataPoints:         s.store.Len(),
		Alerts:             s.alerts.Len(),
		HighAlerts:         s.alerts.CountBySeverity(data.SeverityHigh),
		WarningAlerts:      s.alerts.CountBySeverity(data.SeverityWarning),
		LastUpdate:         unavailable,
		CurrentTemperature: unavailable,
	}

	if last := s.store.Recent(1); len(last) > 0 {
		summary.LastUpdate = last[0].IngestedAt
		summary.CurrentTemperature = last[0].AvgTemperature
	}

	return summary
}
