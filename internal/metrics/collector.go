// Package metrics exposes Prometheus collectors for the risk pipeline.
// A nil *Collector is valid and records nothing, so metrics can be switched off in config.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"moodrisk/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its own registry
type Collector struct {
	registry *prometheus.Registry

	Analyses            *prometheus.CounterVec
	AnalysisDuration    prometheus.Histogram
	AIRequests          *prometheus.CounterVec
	CrisisOverrides     prometheus.Counter
	Alerts              *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a collector under namespace
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_analyses_total",
			Help:      "Entries analyzed, by final risk level and risk source",
		}, []string{"level", "source"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_analysis_duration_seconds",
			Help:      "Duration of a full entry analysis including the AI round-trip",
			Buckets:   prometheus.DefBuckets,
		}),
		AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "AI analysis requests by outcome",
		}, []string{"status"}),
		CrisisOverrides: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crisis_overrides_total",
			Help:      "Scores raised by the crisis safety layer",
		}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts generated, by type",
		}, []string{"type"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		c.Analyses,
		c.AnalysisDuration,
		c.AIRequests,
		c.CrisisOverrides,
		c.Alerts,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
	)

	return c
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordAnalysis counts one finished analysis
func (c *Collector) RecordAnalysis(result models.EnsembleResult, duration time.Duration) {
	if c == nil {
		return
	}
	c.Analyses.WithLabelValues(string(result.RiskLevel), string(result.RiskSource)).Inc()
	c.AnalysisDuration.Observe(duration.Seconds())
	if result.CrisisOverride {
		c.CrisisOverrides.Inc()
	}
}

// RecordAIRequest counts an AI call; skipped calls (no provider configured) are not counted
func (c *Collector) RecordAIRequest(err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.AIRequests.WithLabelValues(status).Inc()
}

// RecordAlerts counts generated alerts
func (c *Collector) RecordAlerts(alerts []*models.Alert) {
	if c == nil {
		return
	}
	for _, a := range alerts {
		c.Alerts.WithLabelValues(string(a.Type)).Inc()
	}
}

// RecordHTTPRequest records an HTTP request metric
func (c *Collector) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
