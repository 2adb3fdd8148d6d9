package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dnsFallbackTotal) }

var dnsFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "siteworker_dns_fallback_total",
		Help: "DNS resolution attempts during transport fallback, labeled by method and outcome.",
	},
	[]string{"method", "outcome"}, // method: 'os', 'doh_google', 'doh_cloudflare'; outcome: 'hit', 'miss'
)

func IncDNSFallback(method, outcome string) {
	dnsFallbackTotal.WithLabelValues(method, outcome).Inc()
}
