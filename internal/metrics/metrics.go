// Package metrics exposes the Prometheus collectors of the API server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spx_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spx_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spx_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	uploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spx_storage_uploaded_bytes_total",
			Help: "Total bytes accepted by the upload endpoint",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spx_storage_uploads_total",
			Help: "Total number of uploads by outcome",
		},
		[]string{"status"},
	)

	quotaExceededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spx_quota_exceeded_total",
			Help: "Requests rejected because a plan limit was reached",
		},
		[]string{"type"},
	)

	aiGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spx_ai_generations_total",
			Help: "Website generations by kind and source",
		},
		[]string{"kind", "source"},
	)

	rateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spx_rate_limit_hits_total",
			Help: "Total rate limit rejections (429s)",
		},
	)

	wsConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spx_websocket_connections_active",
			Help: "Number of open websocket connections",
		},
	)

	blobOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spx_blob_operation_duration_seconds",
			Help:    "Blob backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so ids in the URL do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

func RecordUpload(bytes int64, success bool) {
	status := "success"
	if success {
		uploadBytes.Add(float64(bytes))
	} else {
		status = "error"
	}
	uploadsTotal.WithLabelValues(status).Inc()
}

// RecordQuotaExceeded counts a rejection; kind is "storage" or "ai".
func RecordQuotaExceeded(kind string) {
	quotaExceededTotal.WithLabelValues(kind).Inc()
}

// RecordGeneration counts a generated website; source is "ai" or "fallback".
func RecordGeneration(kind, source string) {
	aiGenerationsTotal.WithLabelValues(kind, source).Inc()
}

func RecordRateLimitHit() {
	rateLimitHitsTotal.Inc()
}

func WebsocketConnected()    { wsConnectionsActive.Inc() }
func WebsocketDisconnected() { wsConnectionsActive.Dec() }

func RecordBlobOperation(backend, operation string, duration time.Duration) {
	blobOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}
