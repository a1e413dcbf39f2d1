// Package metrics holds the Prometheus instruments shared by the pipeline
// and the HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage labels for StageDuration.
const (
	StageDetection      = "detection"
	StageClassification = "classification"
	StageRecognition    = "recognition"
	StageTotal          = "total"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rapidocr_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rapidocr_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// OCR processing metrics
	OCRRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rapidocr_ocr_requests_total",
			Help: "Total number of OCR requests",
		},
		[]string{"source", "status"}, // source: http, websocket, cli
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rapidocr_stage_duration_seconds",
			Help:    "Per-image duration of each pipeline stage in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	LinesDetected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rapidocr_lines_detected",
			Help:    "Number of text lines detected per image",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	WordBoxes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rapidocr_word_boxes",
			Help:    "Number of word boxes reconstructed per image",
			Buckets: []float64{0, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)

	TextLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rapidocr_text_length",
			Help:    "Length of extracted text per image",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
	)

	// File upload metrics
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rapidocr_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rapidocr_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	WebsocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rapidocr_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// ObserveStage records the duration of one pipeline stage.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
