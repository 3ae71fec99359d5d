// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the ldapgate gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// DirectoryBuckets defines histogram buckets suited for LDAP round-trips,
// ranging from 5ms to 10s.
var DirectoryBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldapgate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ldapgate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: DirectoryBuckets,
		},
		[]string{"method"},
	)

	// AuthDecisionsTotal counts authentication decisions by outcome
	// ("accepted", "rejected") and reason (empty when accepted).
	AuthDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldapgate_auth_decisions_total",
			Help: "Authentication decisions",
		},
		[]string{"outcome", "reason"},
	)

	// CacheLookupsTotal counts credential cache lookups by result ("hit", "miss").
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldapgate_cache_lookups_total",
			Help: "Credential cache lookups",
		},
		[]string{"result"},
	)

	// CacheEntries tracks the number of identities held in the credential cache.
	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ldapgate_cache_entries",
			Help: "Credential cache entries",
		},
	)

	// DirectoryRequestsTotal counts directory operations by operation
	// ("authenticate", "groups") and status ("ok", "rejected", "error").
	DirectoryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldapgate_directory_requests_total",
			Help: "Directory requests",
		},
		[]string{"operation", "status"},
	)

	// DirectoryLatency records directory operation latency in seconds.
	DirectoryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ldapgate_directory_latency_seconds",
			Help:    "Directory latency",
			Buckets: DirectoryBuckets,
		},
		[]string{"operation"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ldapgate_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthDecisionsTotal,
		CacheLookupsTotal,
		CacheEntries,
		DirectoryRequestsTotal,
		DirectoryLatency,
		RateLimitRejectedTotal,
	)
}
