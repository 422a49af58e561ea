// Package predictor maintains an online linear trend model over recent
// average temperatures: a bounded window of observations refit with a
// least-squares line on each admission, serving short-horizon forecasts.
package predictor

import (
	"errors"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// ErrInsufficientData is returned when the window holds too few points
// for a fitted model to exist.
var ErrInsufficientData = errors.New("insufficient data for prediction")

type Config struct {
	WindowCapacity int     // bounded observation window, oldest evicted
	MinPoints      int     // observations required before fitting
	Horizon        int     // number of forecast steps
	RiskThreshold  float64 // forecast above this flags overheating risk
}

// Forecast is the outcome of a Predict call.
type Forecast struct {
	Predictions     []float64 `json:"predictions"`
	OverheatingRisk bool      `json:"overheating_risk"`
}

// Predictor owns the observation window and the fitted line parameters.
// One mutex serializes observe and predict so a refit is never read torn.
type Predictor struct {
	mu        sync.Mutex
	cfg       Config
	window    []float64
	slope     float64
	intercept float64
	fitted    bool
	log       zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Predictor {
	if cfg.WindowCapacity < 1 {
		cfg.WindowCapacity = 20
	}
	if cfg.MinPoints < 2 {
		cfg.MinPoints = 6
	}
	if cfg.Horizon < 1 {
		cfg.Horizon = 3
	}
	return &Predictor{
		cfg:    cfg,
		window: make([]float64, 0, cfg.WindowCapacity),
		log:    log.With().Str("component", "predictor").Logger(),
	}
}

// Observe admits a value into the window, evicting the oldest beyond
// capacity, and refits the line once enough points are held. A degenerate
// fit is logged and skipped; the previous model survives.
func (p *Predictor) Observe(value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.window) >= p.cfg.WindowCapacity {
		p.window = p.window[1:]
	}
	p.window = append(p.window, value)

	if len(p.window) < p.cfg.MinPoints {
		return
	}

	slope, intercept, ok := fitLine(p.window)
	if !ok {
		p.log.Warn().Float64("value", value).Msg("degenerate regression input, keeping previous model")
		return
	}
	p.slope, p.intercept, p.fitted = slope, intercept, true
}

// Predict evaluates the fitted line at the next Horizon integer positions
// beyond the window and flags overheating risk if any forecast crosses
// the configured threshold.
func (p *Predictor) Predict() (Forecast, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.fitted || len(p.window) < p.cfg.MinPoints {
		return Forecast{}, ErrInsufficientData
	}

	predictions := make([]float64, p.cfg.Horizon)
	risk := false
	for i := range predictions {
		x := float64(len(p.window) + i)
		predictions[i] = p.slope*x + p.intercept
		if predictions[i] > p.cfg.RiskThreshold {
			risk = true
		}
	}

	return Forecast{Predictions: predictions, OverheatingRisk: risk}, nil
}

// WindowLen reports the current number of held observations.
func (p *Predictor) WindowLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.window)
}

// fitLine computes the least-squares line of values against their integer
// positions 0..n-1. Returns ok=false if the result is not finite.
func fitLine(values []float64) (slope, intercept float64, ok bool) {
	n := float64(len(values))

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}

	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	if math.IsNaN(slope) || math.IsInf(slope, 0) || math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return 0, 0, false
	}
	return slope, intercept, true
}
