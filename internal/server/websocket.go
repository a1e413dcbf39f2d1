package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/rapidocr-go/internal/imageio"
	"github.com/MeKo-Tech/rapidocr-go/internal/metrics"
	"github.com/MeKo-Tech/rapidocr-go/internal/pipeline"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketRequest is a text-frame request. Binary frames carry the raw image
// and use the server defaults.
type WebSocketRequest struct {
	Image     []byte   `json:"image"` // base64 in JSON
	WordBox   *bool    `json:"word_box,omitempty"`
	UseCls    *bool    `json:"use_cls,omitempty"`
	TextScore *float64 `json:"text_score,omitempty"`
}

// WebSocketResponse is sent as a text frame for every request frame.
type WebSocketResponse struct {
	Type      string                `json:"type"`   // "ocr_response" or "error"
	Status    string                `json:"status"` // "completed" or "error"
	RequestID string                `json:"request_id"`
	Result    *pipeline.ImageResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// WebSocketConnWriter is the write side of a WebSocket connection.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// ocrWebSocketHandler upgrades the connection and serves OCR requests until
// the client disconnects.
func (s *Server) ocrWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	metrics.WebsocketConnections.Inc()
	defer metrics.WebsocketConnections.Dec()
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.serveWebSocket(r.Context(), conn)
}

func (s *Server) serveWebSocket(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(s.maxUploadBytes() * 2)
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		metrics.WebsocketMessagesTotal.WithLabelValues("received").Inc()

		s.sendWebSocketResponse(conn, s.handleWebSocketMessage(ctx, messageType, data))
		// the idle window starts once the response is out
		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	}
}

// handleWebSocketMessage turns one frame into one response.
func (s *Server) handleWebSocketMessage(ctx context.Context, messageType int, data []byte) WebSocketResponse {
	resp := WebSocketResponse{Type: "ocr_response", RequestID: uuid.NewString()}
	opts := s.proc.Options()

	payload := data
	if messageType == websocket.TextMessage {
		var req WebSocketRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return resp.fail(fmt.Sprintf("failed to parse request: %v", err))
		}
		if req.WordBox != nil {
			opts.ReturnWordBox = *req.WordBox
		}
		if req.UseCls != nil {
			opts.UseCls = *req.UseCls
		}
		if req.TextScore != nil {
			opts.TextScore = *req.TextScore
		}
		payload = req.Image
	}

	if len(payload) == 0 {
		return resp.fail("no image data provided")
	}
	if int64(len(payload)) > s.maxUploadBytes() {
		return resp.fail("file too large")
	}
	img, _, err := imageio.DecodeBytes(payload)
	if err != nil {
		metrics.OCRRequestsTotal.WithLabelValues("websocket", "error").Inc()
		return resp.fail(fmt.Sprintf("failed to decode image: %v", err))
	}

	res, err := s.proc.ProcessImageWithOptions(ctx, img, opts)
	if err != nil {
		metrics.OCRRequestsTotal.WithLabelValues("websocket", "error").Inc()
		return resp.fail(fmt.Sprintf("OCR processing failed: %v", err))
	}
	metrics.OCRRequestsTotal.WithLabelValues("websocket", "success").Inc()

	resp.Status = "completed"
	resp.Result = res
	return resp
}

func (r WebSocketResponse) fail(msg string) WebSocketResponse {
	r.Type = "error"
	r.Status = "error"
	r.Error = msg
	return r
}

func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, resp WebSocketResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	metrics.WebsocketMessagesTotal.WithLabelValues("sent").Inc()
}
