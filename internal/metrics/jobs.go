package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "siteworker_jobs_processed_total",
		Help: "Total number of site generation jobs processed, labeled by final status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

func IncJobProcessed(status string) {
	jobsProcessedTotal.WithLabelValues(status).Inc()
}
