// Package metrics exports Prometheus metrics for the qualification flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all flow-engine Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Flow metrics
	SessionsStarted prometheus.Counter
	AnswersRecorded *prometheus.CounterVec
	Disqualified    *prometheus.CounterVec
	Submissions     *prometheus.CounterVec
	RepeatVisits    *prometheus.CounterVec

	// Site detection metrics
	SiteChecks        *prometheus.CounterVec
	SiteCheckDuration prometheus.Histogram

	// Webhook metrics
	WebhookDeliveries *prometheus.CounterVec
	WebhookDuration   prometheus.Histogram
}

// New creates a metrics set on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "quiz_funnel_sessions_started_total",
			Help: "Total flow sessions created",
		}),
		AnswersRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_funnel_answers_recorded_total",
			Help: "Total answers recorded per question",
		}, []string{"question"}),
		Disqualified: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_funnel_disqualified_total",
			Help: "Total respondents disqualified per triggering question",
		}, []string{"question"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_funnel_submissions_total",
			Help: "Total submission attempts by result (delivered, failed, duplicate)",
		}, []string{"result"}),
		RepeatVisits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_funnel_repeat_visits_total",
			Help: "Total sessions rerouted by a prior submission record",
		}, []string{"verdict"}),

		SiteChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_funnel_site_checks_total",
			Help: "Total site classifications by outcome (wordpress, other, error)",
		}, []string{"outcome"}),
		SiteCheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_funnel_site_check_duration_seconds",
			Help:    "Time to classify a site",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_funnel_webhook_deliveries_total",
			Help: "Total webhook delivery attempts by result (ok, error)",
		}, []string{"result"}),
		WebhookDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_funnel_webhook_duration_seconds",
			Help:    "Time to deliver the lead payload",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSiteCheck records one classification outcome.
func (m *Metrics) RecordSiteCheck(outcome string, seconds float64) {
	m.SiteChecks.WithLabelValues(outcome).Inc()
	m.SiteCheckDuration.Observe(seconds)
}

// RecordWebhook records one delivery attempt.
func (m *Metrics) RecordWebhook(ok bool, seconds float64) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.WebhookDeliveries.WithLabelValues(result).Inc()
	m.WebhookDuration.Observe(seconds)
}
