package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PositionsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_positions_recorded_total",
		Help: "Total number of GPS samples appended to the position ledger.",
	})

	StatusEventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gps_status_events_recorded_total",
		Help: "Total number of status events appended, labelled by origin (create/followup).",
	}, []string{"origin"})

	StatusCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_status_corrections_total",
		Help: "Total number of in-place status corrections.",
	})

	AttachmentsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_attachments_stored_total",
		Help: "Total number of attachments written to the blob store.",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gps_http_request_duration_ms",
		Help:    "HTTP request latency in milliseconds, labelled by route and status code.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"route", "code"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_track_rate_limited_total",
		Help: "Total number of position reports rejected by the rate limiter.",
	})
)
