package server

import (
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/cascade"
	"github.com/MeKo-Tech/qrscan/internal/utils"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// WSDetectRequest is a detection request sent over WebSocket. Image
// holds the raw image bytes, base64-encoded by the JSON codec.
type WSDetectRequest struct {
	Type    string `json:"type"` // "detect" or "has_code"
	Image   []byte `json:"image,omitempty"`
	Padding *int   `json:"padding,omitempty"`
	Region  *bool  `json:"region,omitempty"`
}

// WSDetectResponse is a detection response or progress event sent over
// WebSocket.
type WSDetectResponse struct {
	Type      string      `json:"type"`
	Status    string      `json:"status"` // "processing", "completed", "error"
	Step      int         `json:"step,omitempty"`
	Total     int         `json:"total,omitempty"`
	Variant   string      `json:"variant,omitempty"`
	Progress  float64     `json:"progress,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// wsWriter is the subset of a WebSocket connection used for sending.
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// detectWebSocketHandler handles WebSocket connections for detection
// with live cascade progress.
func (s *Server) detectWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.serveWebSocketConnection(conn)
}

// serveWebSocketConnection reads and dispatches messages until the
// connection closes.
func (s *Server) serveWebSocketConnection(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Ping periodically to keep the connection alive
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(conn, data)
		}
	}
}

// handleWebSocketMessage parses and dispatches one request message.
func (s *Server) handleWebSocketMessage(conn *websocket.Conn, data []byte) {
	var req WSDetectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No image data provided")
		return
	}

	img, _, err := utils.DecodeImageBytes(req.Image)
	if err != nil {
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Failed to decode image: %v", err))
		return
	}

	switch req.Type {
	case "detect", "":
		s.processWebSocketDetect(conn, req, img, requestID)
	case "has_code":
		s.processWebSocketHasCode(conn, img, requestID)
	default:
		s.sendWebSocketError(conn, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// processWebSocketDetect runs the cascade and streams a progress event
// for every attempt before sending the final result.
func (s *Server) processWebSocketDetect(conn *websocket.Conn, req WSDetectRequest, img image.Image, requestID string) {
	// The progress callback runs synchronously inside Run, so writing
	// to the connection here is safe.
	ctrl := cascade.New(s.detector, cascade.WithProgress(func(step, total int, variant string) {
		s.sendWebSocketResponse(conn, WSDetectResponse{
			Type:      "detect_response",
			Status:    "processing",
			Step:      step,
			Total:     total,
			Variant:   variant,
			Progress:  float64(step) / float64(total),
			RequestID: requestID,
		})
	}))

	start := time.Now()
	outcome, err := ctrl.Run(img)
	duration := time.Since(start)

	if err != nil {
		detectRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Detection failed: %v", err))
		return
	}

	detectRequestsTotal.WithLabelValues("websocket", "success").Inc()
	detectDuration.WithLabelValues("websocket").Observe(duration.Seconds())
	cascadeAttempts.Observe(float64(outcome.Attempts))
	if outcome.Detected {
		cascadeVariantHits.WithLabelValues(variantLabel(outcome.Variant)).Inc()
	}

	bounds := img.Bounds()
	result := &DetectResult{
		Detected: outcome.Detected,
		Payload:  outcome.Payload,
		Corners:  toPointJSON(outcome.Corners),
		Variant:  outcome.Variant,
		Attempts: outcome.Attempts,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		TimeMs:   duration.Milliseconds(),
	}

	includeRegion := s.includeRegion
	if req.Region != nil {
		includeRegion = *req.Region
	}
	if outcome.Detected && includeRegion {
		padding := s.padding
		if req.Padding != nil && *req.Padding >= 0 {
			padding = *req.Padding
		}
		if region, ok := cascade.ExtractRegion(img, outcome.Corners, padding); ok {
			if data, err := cascade.EncodePNG(region.Image); err == nil {
				result.Region = cascade.DataURI(data)
			}
		}
	}

	s.sendWebSocketResponse(conn, WSDetectResponse{
		Type:      "detect_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    result,
		RequestID: requestID,
	})
}

// processWebSocketHasCode runs a single presence check.
func (s *Server) processWebSocketHasCode(conn *websocket.Conn, img image.Image, requestID string) {
	has, _, err := s.cascade.HasCode(img)
	if err != nil {
		detectRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Detection failed: %v", err))
		return
	}

	detectRequestsTotal.WithLabelValues("websocket", "success").Inc()
	s.sendWebSocketResponse(conn, WSDetectResponse{
		Type:      "has_code_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    map[string]bool{"has_code": has},
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends one response message.
func (s *Server) sendWebSocketResponse(conn wsWriter, response WSDetectResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message.
func (s *Server) sendWebSocketError(conn wsWriter, errorType, message string) {
	s.sendWebSocketResponse(conn, WSDetectResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
	})
}
