// Package metrics exposes client activity as Prometheus collectors on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recipebook/cmd/internal/broadcast"
)

const namespace = "recipebook"

// Metrics implements session.Recorder and datastore.Recorder and provides broadcast hooks.
type Metrics struct {
	reg *prometheus.Registry

	authAttempts *prometheus.CounterVec
	expirations  prometheus.Counter
	publications *prometheus.CounterVec
	subscribers  *prometheus.GaugeVec
	syncRequests *prometheus.CounterVec
}

// New registers all collectors, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Sign-up and sign-in attempts by outcome.",
		}, []string{"op", "result"}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_expirations_total",
			Help:      "Sessions ended by the expiry timer.",
		}),
		publications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_publications_total",
			Help:      "Completed store publications.",
		}, []string{"store"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_subscribers",
			Help:      "Observers currently attached to a store.",
		}, []string{"store"}),
		syncRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_requests_total",
			Help:      "Remote collection requests by outcome.",
		}, []string{"collection", "op", "result"}),
	}

	m.reg.MustRegister(
		m.authAttempts,
		m.expirations,
		m.publications,
		m.subscribers,
		m.syncRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// AuthAttempt counts one sign-up or sign-in.
func (m *Metrics) AuthAttempt(op, result string) {
	m.authAttempts.WithLabelValues(op, result).Inc()
}

// SessionExpired counts one timer-driven logout.
func (m *Metrics) SessionExpired() { m.expirations.Inc() }

// SyncRequest counts one remote collection request.
func (m *Metrics) SyncRequest(collection, op, result string) {
	m.syncRequests.WithLabelValues(collection, op, result).Inc()
}

// StoreOptions returns broadcast options that feed the store collectors.
func (m *Metrics) StoreOptions() []broadcast.Option {
	return []broadcast.Option{
		broadcast.WithPublishHook(func(name string, _ int) {
			m.publications.WithLabelValues(label(name)).Inc()
		}),
		broadcast.WithSubscriberHook(func(name string, n int) {
			m.subscribers.WithLabelValues(label(name)).Set(float64(n))
		}),
	}
}

func label(name string) string {
	if name == "" {
		return "unnamed"
	}
	return name
}
