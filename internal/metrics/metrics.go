// Package metrics exposes Prometheus counters for the application's domain
// events and HTTP traffic.
//
// Every method is safe to call on a nil *Metrics, so services and tests that
// don't care about metrics simply pass nil.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "todolists"

// Metrics owns a private registry, so several instances (one per test
// server) never collide on the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	listsCreated  prometheus.Counter
	itemsAdded    prometheus.Counter
	itemsDeleted  prometheus.Counter
	listsDeleted  prometheus.Counter
	listsShared   prometheus.Counter
	signups       prometheus.Counter
	logins        *prometheus.CounterVec
	validations   *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New registers every collector, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		listsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "lists_created_total",
			Help: "Lists created.",
		}),
		itemsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "items_added_total",
			Help: "Items added to existing lists.",
		}),
		itemsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "items_deleted_total",
			Help: "Items deleted.",
		}),
		listsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "lists_deleted_total",
			Help: "Lists removed because their last item was deleted.",
		}),
		listsShared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "lists_shared_total",
			Help: "Successful share operations.",
		}),
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "signups_total",
			Help: "Accounts created.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "logins_total",
			Help: "Login attempts by method and result.",
		}, []string{"method", "result"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "validation_failures_total",
			Help: "Rejected submissions by form.",
		}, []string{"form"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.listsCreated, m.itemsAdded, m.itemsDeleted, m.listsDeleted,
		m.listsShared, m.signups, m.logins, m.validations,
		m.httpRequests, m.httpDurations,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ListCreated() {
	if m != nil {
		m.listsCreated.Inc()
	}
}

func (m *Metrics) ItemAdded() {
	if m != nil {
		m.itemsAdded.Inc()
	}
}

// ItemDeleted records a deletion; listDeleted marks the cascade case.
func (m *Metrics) ItemDeleted(listDeleted bool) {
	if m == nil {
		return
	}
	m.itemsDeleted.Inc()
	if listDeleted {
		m.listsDeleted.Inc()
	}
}

func (m *Metrics) ListShared() {
	if m != nil {
		m.listsShared.Inc()
	}
}

func (m *Metrics) SignedUp() {
	if m != nil {
		m.signups.Inc()
	}
}

// LoginAttempt records one login. method is "password" or "github".
func (m *Metrics) LoginAttempt(method string, ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.logins.WithLabelValues(method, result).Inc()
}

// ValidationFailed records a rejected submission of form.
func (m *Metrics) ValidationFailed(form string) {
	if m != nil {
		m.validations.WithLabelValues(form).Inc()
	}
}

// Middleware counts and times requests. The route label is chi's matched
// pattern ("/lists/{listID}/"), never the raw path, so label cardinality
// stays bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDurations.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
