// Package server exposes the OCR pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/rapidocr-go/internal/pipeline"
)

// Processor is the part of *pipeline.Pipeline the server needs.
type Processor interface {
	ProcessImageWithOptions(ctx context.Context, img image.Image, opts pipeline.Options) (*pipeline.ImageResult, error)
	Options() pipeline.Options
	Close() error
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	MaxUploadMB     int64
	TimeoutSec      int
	ShutdownTimeout int
	RateLimit       RateLimitConfig
}

// Addr returns host:port.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	proc        Processor
	cfg         Config
	rateLimiter *RateLimiter
	pongWait    time.Duration
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// OCRResponse is the body of a successful POST /ocr/image.
type OCRResponse struct {
	RequestID string                `json:"request_id"`
	OCR       *pipeline.ImageResult `json:"ocr"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

// NewServer creates a server around proc.
func NewServer(cfg Config, proc Processor) (*Server, error) {
	if proc == nil {
		return nil, errors.New("server: nil processor")
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 50
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	s := &Server{proc: proc, cfg: cfg, pongWait: wsPongWait}
	if cfg.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(cfg.RateLimit)
	}
	return s, nil
}

// Close releases the processor.
func (s *Server) Close() error {
	return s.proc.Close()
}

func (s *Server) maxUploadBytes() int64 {
	return s.cfg.MaxUploadMB << 20
}

// SetupRoutes registers every endpoint on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.requestID(s.corsMiddleware(s.healthHandler)))
	mux.HandleFunc("/ocr/image", s.requestID(s.corsMiddleware(s.rateLimitMiddleware(s.ocrImageHandler))))
	mux.HandleFunc("/ws/ocr", s.requestID(s.rateLimitMiddleware(s.ocrWebSocketHandler)))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// within the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	timeout := time.Duration(s.cfg.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting OCR server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if s.rateLimiter != nil {
		go s.pruneLoop(ctx)
	}

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	grace := time.Duration(s.cfg.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", grace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("HTTP server shutdown completed")
	return nil
}

func (s *Server) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.rateLimiter.Prune(24 * time.Hour); n > 0 {
				slog.Debug("pruned idle rate limit clients", "count", n)
			}
		}
	}
}
