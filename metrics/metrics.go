// Package metrics exposes the pipeline's Prometheus instrumentation.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upset_radar_job_runs_total",
		Help: "Pipeline job runs by job name and terminal status.",
	}, []string{"job", "status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upset_radar_job_duration_seconds",
		Help:    "Pipeline job run duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"job"})

	RecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upset_radar_records_written_total",
		Help: "Rows created or updated by ingestion jobs.",
	}, []string{"job", "op"})

	SourceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upset_radar_source_requests_total",
		Help: "Upstream source fetches by source and outcome.",
	}, []string{"source", "outcome"})

	AlertsQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upset_radar_alerts_queued_total",
		Help: "Alerts created by the detection pass.",
	})

	AlertsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upset_radar_alerts_delivered_total",
		Help: "Alert delivery outcomes by channel.",
	}, []string{"channel", "outcome"})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "upset_radar_websocket_clients",
		Help: "Currently connected websocket clients.",
	})
)

// Handler serves the Prometheus scrape endpoint through gin.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
