// Package metrics provides Prometheus instrumentation for sealreg.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Bid lifecycle metrics
	bidPlaceTotal       *prometheus.CounterVec
	bidVerifyTotal      *prometheus.CounterVec
	domainRegisterTotal *prometheus.CounterVec
	bidWithdrawTotal    *prometheus.CounterVec

	// Attestation pre-check metrics
	attestationCheckTotal *prometheus.CounterVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	// HTTP request counter
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration histogram
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Bid place counter
	bidPlaceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bid_place_total",
			Help: "Total number of bid placements",
		},
		[]string{"status"},
	)

	// Bid verify counter
	bidVerifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bid_verify_total",
			Help: "Total number of bid verifications",
		},
		[]string{"status"},
	)

	// Domain register counter
	domainRegisterTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_register_total",
			Help: "Total number of domain registrations",
		},
		[]string{"status"},
	)

	// Bid withdraw counter
	bidWithdrawTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bid_withdraw_total",
			Help: "Total number of bid withdrawals",
		},
		[]string{"status"},
	)

	// Attestation pre-check counter
	attestationCheckTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attestation_check_total",
			Help: "Total number of attestation pre-check requests",
		},
		[]string{"result"},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
