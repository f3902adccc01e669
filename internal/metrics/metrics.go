package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fiatsend"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversion",
			Name:      "total",
			Help:      "Fiat to base-unit conversions by quote mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	quoteAge = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "quote_age_seconds",
			Help:      "Age of accepted quotes at validation time.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 13), // 1s to ~68m
		},
		[]string{"mode"},
	)

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transfers_total",
			Help:      "Transfer attempts by outcome.",
		},
		[]string{"outcome"},
	)

	transferredBaseUnits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transferred_base_units_total",
			Help:      "Base units moved by committed transfers.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		conversions,
		quoteAge,
		transfers,
		transferredBaseUnits,
		httpRequests,
		httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordConversion counts one conversion attempt. outcome is "ok" or an
// error kind label.
func RecordConversion(mode, outcome string) {
	conversions.WithLabelValues(mode, outcome).Inc()
}

// ObserveQuoteAge records how old an accepted quote was.
func ObserveQuoteAge(mode string, age time.Duration) {
	if age < 0 {
		age = 0
	}
	quoteAge.WithLabelValues(mode).Observe(age.Seconds())
}

// RecordTransfer counts one authorizer outcome and, when committed, the amount.
func RecordTransfer(outcome string, amountBaseUnits uint64) {
	transfers.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		transferredBaseUnits.Add(float64(amountBaseUnits))
	}
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := routePattern(r)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// routePattern keeps label cardinality bounded by using the matched chi route.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
