package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tile request results.
const (
	ResultHit        = "hit"
	ResultMiss       = "miss"
	ResultOutOfRange = "out_of_range"
	ResultError      = "error"
)

// Access timestamp outcomes.
const (
	TouchDone    = "done"
	TouchFailed  = "failed"
	TouchDropped = "dropped"
	TouchLimited = "rate_limited"
)

var (
	TileRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilestore_tile_requests_total",
		Help: "Total number of tile lookups by dataset and result",
	}, []string{"dataset", "result"})

	TileBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilestore_tile_bytes_total",
		Help: "Total number of tile bytes returned",
	}, []string{"dataset"})

	StorageOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tilestore_storage_operation_duration_seconds",
		Help:    "Duration of storage backend operations in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"backend", "operation"})

	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilestore_storage_errors_total",
		Help: "Total number of storage backend errors",
	}, []string{"backend", "operation"})

	AccessTouches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilestore_access_touches_total",
		Help: "Access timestamp updates by outcome",
	}, []string{"outcome"})

	AccessTouchQueue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tilestore_access_touch_queue_length",
		Help: "Number of access timestamp updates waiting for a worker",
	})
)
