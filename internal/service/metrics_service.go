package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	auditEntries    *prometheus.CounterVec
	reviewsResolved *prometheus.CounterVec
	statusCacheHits prometheus.Counter
	statusCacheMiss prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	auditEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_entries_total",
		Help: "Audit entries written, by action and severity",
	}, []string{"action", "severity"})

	reviewsResolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pending_reviews_resolved_total",
		Help: "Pending reviews resolved, by decision",
	}, []string{"decision"})

	statusCacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "record_status_cache_hits_total",
		Help: "Record status read model cache hits",
	})

	statusCacheMiss := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "record_status_cache_misses_total",
		Help: "Record status read model cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, auditEntries, reviewsResolved, statusCacheHits, statusCacheMiss, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		auditEntries:    auditEntries,
		reviewsResolved: reviewsResolved,
		statusCacheHits: statusCacheHits,
		statusCacheMiss: statusCacheMiss,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request timing and volume.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveAuditEntry counts one audit write.
func (m *MetricsService) ObserveAuditEntry(action, severity string) {
	if m == nil {
		return
	}
	m.auditEntries.WithLabelValues(action, severity).Inc()
}

// ObserveReviewResolved counts one review decision.
func (m *MetricsService) ObserveReviewResolved(approved bool) {
	if m == nil {
		return
	}
	decision := "rejected"
	if approved {
		decision = "approved"
	}
	m.reviewsResolved.WithLabelValues(decision).Inc()
}

// ObserveStatusCache counts a status read model lookup.
func (m *MetricsService) ObserveStatusCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.statusCacheHits.Inc()
	} else {
		m.statusCacheMiss.Inc()
	}
}
