// Package metrics holds the Prometheus collectors for replayconsole.
//
// Every Registry owns its own prometheus.Registry, so tests and multiple
// servers in one process never collide on the global default registerer.
// All recording methods are safe on a nil *Registry, which turns metrics off.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "replayconsole"

// Registry holds all replayconsole application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Console store counters.
	ingested *prometheus.CounterVec // session
	evicted  *prometheus.CounterVec // session
	filtered *prometheus.GaugeVec   // session, cause
	actions  *prometheus.CounterVec // type, outcome
	visible  *prometheus.GaugeVec   // session
	sessions prometheus.Gauge

	// HTTP.
	httpRequests *prometheus.CounterVec   // method, path, status
	httpDuration *prometheus.HistogramVec // method, path

	wsClients prometheus.Gauge
}

// New builds a Registry with every collector registered, plus the Go runtime
// and process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_ingested_total",
			Help:      "Console messages stored, per session.",
		}, []string{"session"}),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_removed_total",
			Help:      "Console messages removed by eviction, clears or logpoint supersession, per session.",
		}, []string{"session"}),
		filtered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "messages_filtered",
			Help:      "Messages currently hidden by a filter, per session and cause.",
		}, []string{"session", "cause"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Dispatched console actions by type and outcome.",
		}, []string{"type", "outcome"}),
		visible: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "messages_visible",
			Help:      "Length of the visible projection, per session.",
		}, []string{"session"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Open console sessions.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route pattern and status code.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket subscribers.",
		}),
	}
	r.reg.MustRegister(
		r.ingested, r.evicted, r.filtered, r.actions, r.visible, r.sessions,
		r.httpRequests, r.httpDuration, r.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ─── Recording ────────────────────────────────────────────────────────────────

// Dispatch records one console action. outcome is "applied", "unchanged" or
// "error".
func (r *Registry) Dispatch(actionType, outcome string) {
	if r == nil {
		return
	}
	r.actions.WithLabelValues(actionType, outcome).Inc()
}

// StoreDelta records how a session's store changed across one dispatch.
func (r *Registry) StoreDelta(session string, added, removed int) {
	if r == nil {
		return
	}
	if added > 0 {
		r.ingested.WithLabelValues(session).Add(float64(added))
	}
	if removed > 0 {
		r.evicted.WithLabelValues(session).Add(float64(removed))
	}
}

// Projection records the visible length and filtered counts of a session.
func (r *Registry) Projection(session string, visible int, filtered map[string]int) {
	if r == nil {
		return
	}
	r.visible.WithLabelValues(session).Set(float64(visible))
	for cause, n := range filtered {
		r.filtered.WithLabelValues(session, cause).Set(float64(n))
	}
}

// SessionOpened increments the open session gauge.
func (r *Registry) SessionOpened() {
	if r == nil {
		return
	}
	r.sessions.Inc()
}

// SessionClosed decrements the open session gauge and drops the session's
// series.
func (r *Registry) SessionClosed(session string) {
	if r == nil {
		return
	}
	r.sessions.Dec()
	r.ingested.DeleteLabelValues(session)
	r.evicted.DeleteLabelValues(session)
	r.visible.DeleteLabelValues(session)
	r.filtered.DeletePartialMatch(prometheus.Labels{"session": session})
}

// HTTPRequest records a served request. path should be the route pattern,
// not the raw URL, to keep label cardinality bounded.
func (r *Registry) HTTPRequest(method, path string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// WebSocketConnected adjusts the connected subscriber gauge by delta.
func (r *Registry) WebSocketConnected(delta int) {
	if r == nil {
		return
	}
	r.wsClients.Add(float64(delta))
}
