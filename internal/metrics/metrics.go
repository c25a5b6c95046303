// Package metrics exposes Prometheus counters for sessions, payments and pushes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and workers report to
type Recorder interface {
	SessionCreated(kind string)
	SessionTransition(kind, op string, applied bool)
	SessionResolved(kind string, age time.Duration)
	PaymentVerified(purpose string, ok bool)
	PushSent(kind string, ok bool)
}

// Collector records to Prometheus
type Collector struct {
	sessionsCreated *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	resolveSeconds  *prometheus.HistogramVec
	payments        *prometheus.CounterVec
	pushes          *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lovesync_sessions_created_total",
			Help: "Shared sessions created, by kind",
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lovesync_session_transitions_total",
			Help: "Session transitions by kind, operation and whether they changed the record",
		}, []string{"kind", "op", "applied"}),
		resolveSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lovesync_session_resolve_seconds",
			Help:    "Time from session creation to resolution",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"kind"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lovesync_payments_verified_total",
			Help: "Payment verifications by purpose and result",
		}, []string{"purpose", "result"}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lovesync_pushes_total",
			Help: "Push notifications by kind and result",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(
		c.sessionsCreated,
		c.transitions,
		c.resolveSeconds,
		c.payments,
		c.pushes,
	)
	return c
}

func (c *Collector) SessionCreated(kind string) {
	c.sessionsCreated.WithLabelValues(kind).Inc()
}

func (c *Collector) SessionTransition(kind, op string, applied bool) {
	c.transitions.WithLabelValues(kind, op, boolLabel(applied)).Inc()
}

func (c *Collector) SessionResolved(kind string, age time.Duration) {
	c.resolveSeconds.WithLabelValues(kind).Observe(age.Seconds())
}

func (c *Collector) PaymentVerified(purpose string, ok bool) {
	c.payments.WithLabelValues(purpose, result(ok)).Inc()
}

func (c *Collector) PushSent(kind string, ok bool) {
	c.pushes.WithLabelValues(kind, result(ok)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Nop discards everything
type Nop struct{}

func (Nop) SessionCreated(string)                  {}
func (Nop) SessionTransition(string, string, bool) {}
func (Nop) SessionResolved(string, time.Duration)  {}
func (Nop) PaymentVerified(string, bool)           {}
func (Nop) PushSent(string, bool)                  {}

// Handler serves the registry for Prometheus scrapes
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
