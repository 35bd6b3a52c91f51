package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmerrifield20/incidentai/internal/incident"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "incident_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "incident_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "incident_classifications_total",
		Help: "Total classifications by predicted category, threat level and path.",
	}, []string{"category", "threat_level", "path"})

	classificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "incident_classification_duration_seconds",
		Help:    "Time spent inside a single classification.",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	})

	trainingRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "incident_training_runs_total",
		Help: "Total training runs by outcome status.",
	}, []string{"status"})

	modelAccuracy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "incident_model_accuracy",
		Help: "Held-out accuracy of each ensemble member from the last successful run.",
	}, []string{"model"})

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "incident_alerts_total",
		Help: "Total alerts derived by type.",
	}, []string{"type"})

	webhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "incident_webhook_deliveries_total",
		Help: "Total webhook delivery attempts by success status.",
	}, []string{"status"})

	healthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "incident_health_checks_total",
		Help: "Total component health probes by component and result.",
	}, []string{"component", "result"})

	ledgerEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "incident_model_ledger_entries_total",
		Help: "Total model ledger entries appended.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordClassification records one classify call.
func RecordClassification(res incident.Result, took time.Duration) {
	path := "model"
	switch {
	case res.Degraded:
		path = "degraded"
	case res.Fallback:
		path = "rules"
	}
	classificationsTotal.WithLabelValues(string(res.PredictedType), string(res.ThreatLevel), path).Inc()
	classificationDuration.Observe(took.Seconds())
}

// RecordTraining records a training outcome.
func RecordTraining(report incident.TrainingReport) {
	trainingRunsTotal.WithLabelValues(string(report.Status)).Inc()
	if report.Status != incident.TrainingSuccess {
		return
	}
	for name, acc := range report.ModelAccuracy {
		modelAccuracy.WithLabelValues(name).Set(acc)
	}
}

// RecordAlert records a derived alert.
func RecordAlert(alertType string) {
	alertsTotal.WithLabelValues(alertType).Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	webhookDeliveriesTotal.WithLabelValues(result(success)).Inc()
}

// RecordHealthCheck records a component probe result.
func RecordHealthCheck(component string, success bool) {
	healthChecksTotal.WithLabelValues(component, result(success)).Inc()
}

// RecordLedgerAppend records a model ledger entry append.
func RecordLedgerAppend() {
	ledgerEntriesTotal.Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
