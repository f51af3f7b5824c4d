package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type Metrics struct {
	Transactions *prometheus.CounterVec
	Attempts     *prometheus.HistogramVec
	Checkouts    *prometheus.CounterVec
	Requests     *prometheus.CounterVec
	LatencyMS    *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every instrument on reg. Tests pass a fresh
// prometheus.NewRegistry to keep runs isolated.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "transactions_total",
			Help:      "Order transactions by operation and outcome.",
		}, []string{"op", "outcome"}),
		Attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "transaction_attempts",
			Help:      "Attempts used per order transaction.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 13},
		}, []string{"op"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "results_total",
			Help:      "Checkouts by aggregate result.",
		}, []string{"status"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route", "method"}),
		gatherer: reg,
	}

	reg.MustRegister(m.Transactions, m.Attempts, m.Checkouts, m.Requests, m.LatencyMS)
	return m
}

func (m *Metrics) ObserveTransaction(op, outcome string, attempts int) {
	m.Transactions.WithLabelValues(op, outcome).Inc()
	m.Attempts.WithLabelValues(op).Observe(float64(attempts))
}

func (m *Metrics) ObserveCheckout(status string, sellers int) {
	m.Checkouts.WithLabelValues(status).Inc()
}

// Middleware records one sample per request labelled by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
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

		m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route, r.Method).Observe(float64(time.Since(start).Milliseconds()))
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
