package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fundops"

var (
	// Registry holds the fundops collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "broadcasts_total",
			Help:      "Transactions accepted by the node.",
		},
		[]string{"action"},
	)

	outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "outcomes_total",
			Help:      "Resolved transactions by final status.",
		},
		[]string{"action", "status"},
	)

	confirmationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "confirmation_seconds",
			Help:      "Time from broadcast to receipt.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5m
		},
		[]string{"action"},
	)

	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flow",
			Name:      "rejections_total",
			Help:      "Mutating calls refused before anything was broadcast.",
		},
		[]string{"action", "reason"},
	)

	navPerShare = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "nav_per_share",
			Help:      "Latest published NAV per share in denomination asset units.",
		},
	)

	grossAssetValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "gross_asset_value",
			Help:      "Latest published gross asset value in denomination asset units.",
		},
	)

	pollErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chainstate",
			Name:      "poll_errors_total",
			Help:      "Failed chain state polls.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		broadcasts,
		outcomes,
		confirmationLatency,
		rejections,
		navPerShare,
		grossAssetValue,
		pollErrors,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations labelled by the matched mux route template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := routeTemplate(r)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

func RecordBroadcast(b types.Broadcast) {
	broadcasts.WithLabelValues(string(b.Action)).Inc()
}

func RecordOutcome(b types.Broadcast, o types.Outcome) {
	outcomes.WithLabelValues(string(b.Action), string(o.Status)).Inc()
	if o.Status != types.OutcomeAbandoned && !o.ResolvedAt.IsZero() && o.ResolvedAt.After(b.SubmittedAt) {
		confirmationLatency.WithLabelValues(string(b.Action)).Observe(o.ResolvedAt.Sub(b.SubmittedAt).Seconds())
	}
}

// RecordRejection counts a refused call. reason is a short error class, not the message.
func RecordRejection(action types.Action, reason string) {
	rejections.WithLabelValues(string(action), reason).Inc()
}

func RecordSnapshot(s types.VaultSnapshot) {
	nav, _ := s.NavPerShare.Float64()
	gav, _ := s.GrossAssetValue.Float64()
	navPerShare.Set(nav)
	grossAssetValue.Set(gav)
}

func RecordPollError() {
	pollErrors.Inc()
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
