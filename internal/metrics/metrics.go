package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsIngested counts aggregated records accepted by the cloud.
	RecordsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "records_ingested_total",
			Help: "Total number of aggregated records ingested",
		},
	)

	// AlertsGenerated counts threshold alerts by severity.
	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_generated_total",
			Help: "Total number of temperature alerts generated",
		},
		[]string{"severity"},
	)

	// IngestDuration tracks /api/data handling latency.
	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "Ingestion request handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ReadingsReceived counts sensor messages accepted into the fog buffer.
	ReadingsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readings_received_total",
			Help: "Total number of sensor readings received",
		},
	)

	// ReadingsDropped counts sensor messages dropped as malformed.
	ReadingsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readings_dropped_total",
			Help: "Total number of malformed sensor messages dropped",
		},
	)

	// ForwardAttempts counts fog-to-cloud forwards by outcome
	// (success, unauthorized, error).
	ForwardAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forward_attempts_total",
			Help: "Total number of forward attempts to the cloud",
		},
		[]string{"outcome"},
	)

	// BufferSize tracks the current fog reading buffer length.
	BufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fog_buffer_size",
			Help: "Current number of readings in the aggregation buffer",
		},
	)
)
