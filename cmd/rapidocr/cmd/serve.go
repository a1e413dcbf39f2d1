package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/rapidocr-go/internal/config"
	"github.com/MeKo-Tech/rapidocr-go/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for OCR API",
		Long: `Start an HTTP server that provides OCR endpoints.

The server provides the following endpoints:
  POST /ocr/image - OCR an uploaded image (multipart field "image" or raw body)
  GET  /ws/ocr    - WebSocket; each binary frame is an image, each reply a JSON result
  GET  /health    - Health check endpoint
  GET  /metrics   - Prometheus metrics

Examples:
  rapidocr serve
  rapidocr serve --host 0.0.0.0 --port 3000 --word-box`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := openEngine(a)
			if err != nil {
				return err
			}
			srv, err := server.NewServer(serverConfig(a.cfg.Server), eng)
			if err != nil {
				closeEngine(eng)
				return fmt.Errorf("failed to initialize server: %w", err)
			}
			defer func() { _ = srv.Close() }()
			return srv.ListenAndServe(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	bindKey(f, "host", "server.host")
	f.IntP("port", "p", 8080, "server port")
	bindKey(f, "port", "server.port")
	f.String("cors-origin", "*", "CORS allowed origins")
	bindKey(f, "cors-origin", "server.cors_origin")
	f.Int("max-upload-size", 50, "maximum upload size in MB")
	bindKey(f, "max-upload-size", "server.max_upload_mb")
	f.Int("timeout", 30, "request timeout in seconds")
	bindKey(f, "timeout", "server.timeout_sec")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	bindKey(f, "shutdown-timeout", "server.shutdown_timeout")
	f.Bool("rate-limit", false, "enable per-client rate limiting")
	bindKey(f, "rate-limit", "server.rate_limit.enabled")
	addPipelineFlags(f)
	return cmd
}

func serverConfig(c config.ServerConfig) server.Config {
	return server.Config{
		Host:            c.Host,
		Port:            c.Port,
		CORSOrigin:      c.CORSOrigin,
		MaxUploadMB:     int64(c.MaxUploadMB),
		TimeoutSec:      c.TimeoutSec,
		ShutdownTimeout: c.ShutdownTimeout,
		RateLimit: server.RateLimitConfig{
			Enabled:           c.RateLimit.Enabled,
			RequestsPerMinute: c.RateLimit.RequestsPerMinute,
			RequestsPerHour:   c.RateLimit.RequestsPerHour,
			MaxRequestsPerDay: c.RateLimit.MaxRequestsPerDay,
			MaxDataPerDay:     c.RateLimit.MaxDataPerDay,
		},
	}
}
