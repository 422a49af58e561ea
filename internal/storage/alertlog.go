package storage

import (
	"sync"

	"iot-fog-pipeline/internal/data"
)

// AlertLog is the append-only alert history. Unbounded: repeated
// threshold crossings each append a fresh entry.
type AlertLog struct {
	mu     sync.RWMutex
	alerts []data.Alert
}

func NewAlertLog() *AlertLog {
	return &AlertLog{}
}

func (l *AlertLog) Append(alert data.Alert) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alerts = append(l.alerts, alert)
}

// Recent returns a copy of the last limit alerts in append order.
// A limit of zero or beyond the log length returns everything.
func (l *AlertLog) Recent(limit int) []data.Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.alerts) {
		limit = len(l.alerts)
	}
	out := make([]data.Alert, limit)
	copy(out, l.alerts[len(l.alerts)-limit:])
	return out
}

func (l *AlertLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.alerts)
}

// CountBySeverity returns the number of alerts carrying severity.
func (l *AlertLog) CountBySeverity(severity string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, a := range l.alerts {
		if a.Severity == severity {
			n++
		}
	}
	return n
}
