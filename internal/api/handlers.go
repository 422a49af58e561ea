package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"iot-fog-pipeline/internal/auth"
	"iot-fog-pipeline/internal/data"
	"iot-fog-pipeline/internal/metrics"
	"iot-fog-pipeline/internal/predictor"
	"iot-fog-pipeline/internal/websocket"
)

var upgrader = gwebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	service *Service
	auth    *auth.Manager
	hub     *websocket.Hub
	log     zerolog.Logger
}

func NewHandler(service *Service, authManager *auth.Manager, hub *websocket.Hub, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		auth:    authManager,
		hub:     hub,
		log:     log.With().Str("component", "api").Logger(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// HandleLogin exchanges basic credentials for a signed token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || username == "" || password == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "credentials not provided"})
		return
	}

	token, err := h.auth.Login(username, password)
	if err != nil {
		h.log.Warn().Str("user", username).Msg("login rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid login"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ingestPayload mirrors AggregatedRecord but keeps AvgTemperature as a
// pointer: a payload without it is rejected before any state mutates.
type ingestPayload struct {
	AvgTemperature *float64  `json:"avg_temperature"`
	MaxTemperature float64   `json:"max_temperature"`
	MinTemperature float64   `json:"min_temperature"`
	AvgVibration   float64   `json:"avg_vibration"`
	PresenceCount  int       `json:"presence_count"`
	SamplesCount   int       `json:"samples_count"`
	Timestamp      time.Time `json:"timestamp"`
	Region         string    `json:"region"`
}

// HandleIngest receives an aggregated record from an authenticated node.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	node, _ := auth.IdentityFromContext(r.Context())

	var payload ingestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be valid JSON"})
		return
	}
	if payload.AvgTemperature == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field 'avg_temperature' is required"})
		return
	}

	record := data.AggregatedRecord{
		AvgTemperature: *payload.AvgTemperature,
		MaxTemperature: payload.MaxTemperature,
		MinTemperature: payload.MinTemperature,
		AvgVibration:   payload.AvgVibration,
		PresenceCount:  payload.PresenceCount,
		SamplesCount:   payload.SamplesCount,
		Timestamp:      payload.Timestamp,
		Region:         payload.Region,
	}

	h.service.Ingest(node, record)
	h.log.Info().
		Str("node", node).
		Float64("avg_temperature", record.AvgTemperature).
		Int("samples", record.SamplesCount).
		Msg("record ingested")

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "data received"})
}

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}

// HandleHistory returns the most recent ingested records, default 50.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	records := h.service.History(limitParam(r, 50))
	writeJSON(w, http.StatusOK, records)
}

// HandleAlerts returns the most recent alerts, default 10.
func (h *Handler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.service.Alerts(limitParam(r, 10))
	writeJSON(w, http.StatusOK, alerts)
}

// HandlePredict serves the temperature forecast.
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	forecast, err := h.service.Predict()
	if err != nil {
		if errors.Is(err, predictor.ErrInsufficientData) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "insufficient data for prediction"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "prediction failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"predictions":      forecast.Predictions,
		"overheating_risk": forecast.OverheatingRisk,
		"timestamp":        time.Now(),
	})
}

// HandleStatus serves the operational summary.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Status())
}

// HandleWebSocket upgrades an authenticated connection onto the live feed.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	websocket.NewClient(h.hub, conn)
}
