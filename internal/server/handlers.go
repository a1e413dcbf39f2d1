package server

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/rapidocr-go/internal/imageio"
	"github.com/MeKo-Tech/rapidocr-go/internal/metrics"
	"github.com/MeKo-Tech/rapidocr-go/internal/pipeline"
	"github.com/MeKo-Tech/rapidocr-go/internal/version"
	"github.com/MeKo-Tech/rapidocr-go/internal/visualize"
)

const (
	formatJSON    = "json"
	formatText    = "text"
	formatYAML    = "yaml"
	formatOverlay = "overlay"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// ocrImageHandler runs OCR on an uploaded image, sent either as the multipart
// field "image" or as the raw request body.
func (s *Server) ocrImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	opts, format, err := s.requestOptions(r)
	if err != nil {
		metrics.OCRRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	img, status, err := s.readImage(w, r)
	if err != nil {
		metrics.OCRRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeError(w, r, err.Error(), status)
		return
	}

	res, err := s.proc.ProcessImageWithOptions(r.Context(), img, opts)
	if err != nil {
		metrics.OCRRequestsTotal.WithLabelValues("http", "error").Inc()
		slog.Error("OCR processing failed", "request_id", RequestIDFrom(r.Context()), "error", err)
		s.writeError(w, r, fmt.Sprintf("OCR processing failed: %v", err), http.StatusInternalServerError)
		return
	}
	metrics.OCRRequestsTotal.WithLabelValues("http", "success").Inc()

	s.writeResult(w, r, format, img, res)
}

// requestOptions applies the query overrides word_box, use_cls, text_score
// and format to the processor defaults.
func (s *Server) requestOptions(r *http.Request) (pipeline.Options, string, error) {
	opts := s.proc.Options()
	q := r.URL.Query()

	for name, dst := range map[string]*bool{"word_box": &opts.ReturnWordBox, "use_cls": &opts.UseCls} {
		if v := q.Get(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return opts, "", fmt.Errorf("invalid %s: %q", name, v)
			}
			*dst = b
		}
	}
	if v := q.Get("text_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return opts, "", fmt.Errorf("invalid text_score: %q", v)
		}
		opts.TextScore = f
	}

	format := q.Get("format")
	switch format {
	case "":
		format = formatJSON
	case formatJSON, formatText, formatYAML, formatOverlay:
	default:
		return opts, "", fmt.Errorf("invalid format: %q", format)
	}
	return opts, format, nil
}

// readImage decodes the request image and returns the HTTP status to use on
// failure.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) (image.Image, int, error) {
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var body io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(limit); err != nil {
			if isTooLarge(err) {
				return nil, http.StatusRequestEntityTooLarge, errors.New("file too large")
			}
			return nil, http.StatusBadRequest, errors.New("failed to parse form data")
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			return nil, http.StatusBadRequest, errors.New("no image file provided")
		}
		defer func() { _ = file.Close() }()
		metrics.UploadSizeBytes.Observe(float64(header.Size))
		body = file
	} else if r.ContentLength > 0 {
		metrics.UploadSizeBytes.Observe(float64(r.ContentLength))
	}

	img, _, err := imageio.Decode(body, limit)
	if err != nil {
		if isTooLarge(err) {
			return nil, http.StatusRequestEntityTooLarge, errors.New("file too large")
		}
		return nil, http.StatusBadRequest, fmt.Errorf("invalid image: %v", err)
	}
	return img, http.StatusOK, nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || errors.Is(err, imageio.ErrTooLarge) ||
		strings.Contains(err.Error(), "request body too large")
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, format string, img image.Image, res *pipeline.ImageResult) {
	switch format {
	case formatText:
		out, err := pipeline.ToPlainText(res)
		if err != nil {
			s.writeError(w, r, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, out+"\n")
	case formatYAML:
		out, err := pipeline.ToYAML(res)
		if err != nil {
			s.writeError(w, r, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = io.WriteString(w, out)
	case formatOverlay:
		w.Header().Set("Content-Type", "image/png")
		if err := imaging.Encode(w, visualize.Render(img, res, visualize.DefaultOptions()), imaging.PNG); err != nil {
			slog.Error("failed to encode overlay", "error", err)
		}
	default:
		writeJSON(w, http.StatusOK, OCRResponse{RequestID: RequestIDFrom(r.Context()), OCR: res})
	}
}
