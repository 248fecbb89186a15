package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Result labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the Prometheus collectors for the API. All methods are safe
// to call on a nil *Metrics.
type Metrics struct {
	// Registry owns every collector below; the /metrics endpoint serves it
	Registry *prometheus.Registry

	conversions         *prometheus.CounterVec
	proposalTransitions *prometheus.CounterVec
	notifications       *prometheus.CounterVec
	permissionCache     *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
}

// New creates a private registry and registers all collectors in it, so
// tests can build as many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salesflow_conversions_total",
				Help: "Conversion and creation operations by outcome.",
			},
			[]string{"operation", "result"},
		),
		proposalTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salesflow_proposal_transitions_total",
				Help: "Proposal lifecycle operations by outcome.",
			},
			[]string{"action", "result"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salesflow_notifications_total",
				Help: "Notifications dispatched by outcome.",
			},
			[]string{"result"},
		),
		permissionCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salesflow_permission_cache_total",
				Help: "Permission cache lookups by outcome.",
			},
			[]string{"result"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "salesflow_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ResultOf maps an operation error to a result label
func ResultOf(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

func (m *Metrics) RecordConversion(operation string, err error) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(operation, ResultOf(err)).Inc()
}

func (m *Metrics) RecordProposalTransition(action string, err error) {
	if m == nil {
		return
	}
	m.proposalTransitions.WithLabelValues(action, ResultOf(err)).Inc()
}

func (m *Metrics) RecordNotification(err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(ResultOf(err)).Inc()
}

// RecordPermissionCache counts a cache lookup as "hit", "miss" or "error"
func (m *Metrics) RecordPermissionCache(result string) {
	if m == nil {
		return
	}
	m.permissionCache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// ConversionCount returns the current value of one conversions counter
func (m *Metrics) ConversionCount(operation, result string) float64 {
	return counterValue(m.conversions.WithLabelValues(operation, result))
}

// ProposalTransitionCount returns the current value of one transitions counter
func (m *Metrics) ProposalTransitionCount(action, result string) float64 {
	return counterValue(m.proposalTransitions.WithLabelValues(action, result))
}

// NotificationCount returns the current value of one notifications counter
func (m *Metrics) NotificationCount(result string) float64 {
	return counterValue(m.notifications.WithLabelValues(result))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
