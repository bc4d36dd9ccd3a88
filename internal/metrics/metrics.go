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
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapmeasure",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mapmeasure",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route"})

	MeasurementsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapmeasure",
		Name:      "measurements_committed_total",
		Help:      "Measurements committed by a completed gesture",
	}, []string{"kind"})

	MeasurementsRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapmeasure",
		Name:      "measurements_removed_total",
		Help:      "Measurements removed from a session",
	}, []string{"reason"})

	CirclesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mapmeasure",
		Name:      "circle_discarded_total",
		Help:      "Circle gestures released below the minimum radius",
	})

	PersistenceSaveFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapmeasure",
		Subsystem: "persistence",
		Name:      "save_failures_total",
		Help:      "Failed state saves",
	}, []string{"backend"})

	PersistenceLoadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapmeasure",
		Subsystem: "persistence",
		Name:      "load_failures_total",
		Help:      "State loads that fell back to the default state",
	}, []string{"backend"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapmeasure",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapmeasure",
		Name:      "active_sessions",
		Help:      "Sessions currently held in memory",
	})
)

// Middleware records request metrics labelled by the matched chi route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
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

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
