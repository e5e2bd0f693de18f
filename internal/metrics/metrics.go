// Package metrics exposes the prometheus collectors used by the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smartbasket"

var (
	comparisonsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_total",
			Help:      "Total number of basket comparisons computed.",
		},
	)
	comparisonDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "comparison_duration_seconds",
			Help:      "Histogram of basket comparison durations.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)
	priceUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_updates_total",
			Help:      "Total number of price updates by result.",
		},
		[]string{"result"},
	)
	linkageRepairsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "linkage_repairs_total",
			Help:      "Total number of offering links repaired by the reconciler.",
		},
	)
	priceCacheRepairsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_repairs_total",
			Help:      "Total number of offering price caches rebuilt from the ledger by the reconciler.",
		},
	)
	grpcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC requests.",
		},
		[]string{"method", "code"},
	)
	grpcRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "Histogram of gRPC request durations.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		comparisonsTotal,
		comparisonDuration,
		priceUpdatesTotal,
		linkageRepairsTotal,
		priceCacheRepairsTotal,
		grpcRequestsTotal,
		grpcRequestDuration,
	)
}

// RecordComparison counts one comparison and its latency.
func RecordComparison(duration time.Duration) {
	comparisonsTotal.Inc()
	comparisonDuration.Observe(duration.Seconds())
}

// RecordPriceUpdate counts a price update as "success" or "failure".
func RecordPriceUpdate(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	priceUpdatesTotal.WithLabelValues(result).Inc()
}

func RecordLinkageRepairs(n int) {
	if n > 0 {
		linkageRepairsTotal.Add(float64(n))
	}
}

func RecordPriceCacheRepairs(n int) {
	if n > 0 {
		priceCacheRepairsTotal.Add(float64(n))
	}
}

// RecordGRPCRequest records a finished unary call.
func RecordGRPCRequest(method, code string, duration time.Duration) {
	grpcRequestsTotal.WithLabelValues(method, code).Inc()
	grpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler returns the HTTP handler that serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
