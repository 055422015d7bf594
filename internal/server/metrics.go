package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Detection metrics
	detectRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_detect_requests_total",
			Help: "Total number of detection requests",
		},
		[]string{"type", "status"}, // type: single, multi, has_code, websocket
	)

	detectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrscan_detect_duration_seconds",
			Help:    "Detection cascade duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	cascadeAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qrscan_cascade_attempts",
			Help:    "Number of cascade attempts per detection request",
			Buckets: []float64{1, 2, 3, 5, 8, 12, 16, 20},
		},
	)

	cascadeVariantHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_cascade_variant_hits_total",
			Help: "Successful detections by preprocessing variant",
		},
		[]string{"variant"},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qrscan_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qrscan_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
