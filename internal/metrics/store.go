package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(storeRequestsTotal) }

var storeRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "siteworker_store_requests_total",
		Help: "REST requests issued to the backing store, labeled by HTTP method and outcome.",
	},
	[]string{"method", "outcome"}, // outcome: 'ok', 'api_error', 'transport_error'
)

func IncStoreRequest(method, outcome string) {
	storeRequestsTotal.WithLabelValues(method, outcome).Inc()
}
