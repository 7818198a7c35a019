package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jbergloda1/swha-backend/internal/streaming"
)

// Metrics contains all Prometheus metrics for the gateway
type Metrics struct {
	// Streaming session metrics
	ActiveSessions prometheus.Gauge
	SessionsOpened prometheus.Counter
	SessionsClosed *prometheus.CounterVec

	// Audio ingest metrics
	ChunksReceived prometheus.Counter
	BytesReceived  prometheus.Counter
	ChunkSize      prometheus.Histogram

	// Transcription metrics
	TranscriptionPasses   *prometheus.CounterVec
	TranscriptionDuration *prometheus.HistogramVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "swha_streaming_active_sessions",
			Help: "Current number of open streaming sessions",
		}),
		SessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "swha_streaming_sessions_opened_total",
			Help: "Total number of streaming sessions opened",
		}),
		SessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "swha_streaming_sessions_closed_total",
			Help: "Total number of streaming sessions closed, by reason",
		}, []string{"reason"}),

		ChunksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "swha_streaming_chunks_received_total",
			Help: "Total number of binary audio chunks received",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "swha_streaming_bytes_received_total",
			Help: "Total number of audio bytes received",
		}),
		ChunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "swha_streaming_chunk_size_bytes",
			Help:    "Size of received audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 12), // 256B to ~512KB
		}),

		TranscriptionPasses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "swha_transcription_passes_total",
			Help: "Total number of transcription passes, by kind and outcome",
		}, []string{"kind", "outcome"}),
		TranscriptionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swha_transcription_duration_seconds",
			Help:    "Duration of transcription passes",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"kind"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "swha_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swha_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// SessionOpened implements streaming.Observer
func (m *Metrics) SessionOpened() {
	m.SessionsOpened.Inc()
	m.ActiveSessions.Inc()
}

// SessionClosed implements streaming.Observer
func (m *Metrics) SessionClosed(reason streaming.CloseReason) {
	label := string(reason)
	if label == "" {
		label = "unknown"
	}
	m.SessionsClosed.WithLabelValues(label).Inc()
	m.ActiveSessions.Dec()
}

// ChunkReceived implements streaming.Observer
func (m *Metrics) ChunkReceived(size int) {
	m.ChunksReceived.Inc()
	m.BytesReceived.Add(float64(size))
	m.ChunkSize.Observe(float64(size))
}

// TranscriptionPass implements streaming.Observer
func (m *Metrics) TranscriptionPass(kind streaming.PassKind, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.TranscriptionPasses.WithLabelValues(string(kind), outcome).Inc()
	m.TranscriptionDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// Middleware records every request handled by echo, labelled by route template
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}

			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			m.RecordHTTPRequest(c.Request().Method, endpoint, strconv.Itoa(status), time.Since(start).Seconds())
			return err
		}
	}
}
