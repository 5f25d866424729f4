package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remote_finder_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remote_finder_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "remote_finder_sessions_active",
		Help: "Sessions currently holding an SFTP transport.",
	})

	sessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remote_finder_sessions_closed_total",
		Help: "Sessions destroyed, by reason.",
	}, []string{"reason"})

	terminalsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "remote_finder_terminals_active",
		Help: "Open terminal bridges.",
	})

	transportDials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remote_finder_transport_dials_total",
		Help: "Remote transport dials by kind (sftp, shell) and result.",
	}, []string{"kind", "result"})
)

func MetricsMiddleware(next http.Handler) http.Handler {
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

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func dialResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
