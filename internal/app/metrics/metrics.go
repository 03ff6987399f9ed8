// Package metrics exposes the application's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "openquill",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openquill",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "openquill",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	claps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openquill",
			Subsystem: "engagement",
			Name:      "claps_total",
			Help:      "Total number of claps recorded.",
		},
		[]string{"target"},
	)

	articlesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "openquill",
			Subsystem: "articles",
			Name:      "published_total",
			Help:      "Total number of articles published.",
		},
	)

	donationsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openquill",
			Subsystem: "donations",
			Name:      "settled_total",
			Help:      "Total number of donations settled by outcome.",
		},
		[]string{"status"},
	)

	counterCorrections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "openquill",
			Subsystem: "reconciler",
			Name:      "corrections_total",
			Help:      "Total number of counter rows repaired by reconciliation.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		claps,
		articlesPublished,
		donationsSettled,
		counterCorrections,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordClap counts a clap on an article or comment.
func RecordClap(target string) {
	if target == "" {
		target = "article"
	}
	claps.WithLabelValues(target).Inc()
}

// RecordPublish counts a draft going live.
func RecordPublish() {
	articlesPublished.Inc()
}

// RecordDonationSettled counts a settled donation by outcome.
func RecordDonationSettled(status string) {
	donationsSettled.WithLabelValues(status).Inc()
}

// RecordCounterCorrections counts rows repaired by a reconciliation pass.
func RecordCounterCorrections(n int64) {
	if n > 0 {
		counterCorrections.Add(float64(n))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses resource ids so the path label stays low
// cardinality.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "api" {
		return "/" + trimmed
	}
	parts = parts[1:]
	if len(parts) == 0 {
		return "/api"
	}
	switch parts[0] {
	case "articles", "comments", "users", "donations":
		if len(parts) == 1 {
			return "/api/" + parts[0]
		}
		if parts[0] == "articles" && parts[1] == "search" {
			return "/api/articles/search"
		}
		if parts[0] == "donations" && parts[1] == "webhook" {
			return "/api/donations/webhook"
		}
		if len(parts) == 2 {
			return "/api/" + parts[0] + "/:id"
		}
		return "/api/" + parts[0] + "/:id/" + parts[2]
	default:
		return "/api/" + strings.Join(parts, "/")
	}
}
