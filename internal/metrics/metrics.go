// Package metrics exposes Prometheus collectors for the editor, the click
// dispatcher and the HTTP surfaces.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"showroom-popup-builder/internal/model"
)

// Metrics owns one registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	loads           *prometheus.CounterVec
	saves           *prometheus.CounterVec
	saveDuration    prometheus.Histogram
	renderFailures  *prometheus.CounterVec
	clicks          *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popup_template_loads_total",
			Help: "Editor template loads by outcome",
		}, []string{"outcome"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popup_template_saves_total",
			Help: "Editor template saves by outcome",
		}, []string{"outcome"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "popup_template_save_duration_seconds",
			Help:    "Time spent generating and saving a template",
			Buckets: prometheus.DefBuckets,
		}),
		renderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popup_render_failures_total",
			Help: "Template render or generation failures",
		}, []string{"template"}),
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popup_clicks_total",
			Help: "Scene clicks by action and outcome",
		}, []string{"action", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popup_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "popup_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		m.loads, m.saves, m.saveDuration, m.renderFailures, m.clicks, m.requests, m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveLoad(outcome string) {
	m.loads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSave(outcome string, elapsed time.Duration) {
	m.saves.WithLabelValues(outcome).Inc()
	m.saveDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRenderFailure(t model.TemplateType) {
	m.renderFailures.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) ObserveClick(action, outcome string) {
	if action == "" {
		action = "none"
	}
	m.clicks.WithLabelValues(action, outcome).Inc()
}

// RecordRequest counts one HTTP request.
func (m *Metrics) RecordRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Middleware records every request under its chi route pattern, so
// /api/objects/{name}/edit is one series whatever the object.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
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
		m.RecordRequest(r.Method, route, status, time.Since(start))
	})
}
