package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(stageDurationSeconds) }

var stageDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "siteworker_stage_duration_seconds",
		Help:    "Duration of individual pipeline stages.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	},
	[]string{"stage"},
)

func ObserveStageDuration(stage string, d time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}
