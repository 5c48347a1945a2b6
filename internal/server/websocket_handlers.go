package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message types sent over the websocket.
const (
	wsTypeStage  = "stage"
	wsTypeResult = "result"
	wsTypeError  = "error"
)

// coreStages is the number of stage events of a detections run.
const coreStages = 5

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketResponse is one message of a parse over the websocket: a stage
// event while the run progresses, then the result or an error.
type WebSocketResponse struct {
	Type      string               `json:"type"`
	RequestID string               `json:"request_id,omitempty"`
	Stage     *pipeline.StageEvent `json:"stage,omitempty"`
	Progress  float64              `json:"progress,omitempty"`
	Result    *ParseResult         `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	ErrorType string               `json:"error_type,omitempty"`
}

// parseWebSocketHandler accepts ParseRequest messages and streams progress.
func (s *Server) parseWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages until the client goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

// handleWebSocketMessage parses one request and writes its progress and result.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	req, err := decodeParseRequest(data)
	if err != nil {
		parseRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, "", "invalid_request", err.Error())
		return
	}
	requestID := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := 0
	observer := pipeline.WithStageObserver(func(ev pipeline.StageEvent) {
		done++
		s.sendWebSocketResponse(conn, WebSocketResponse{
			Type:      wsTypeStage,
			RequestID: requestID,
			Stage:     &ev,
			Progress:  min(float64(done)/coreStages, 1),
		})
	})

	start := time.Now()
	res, err := s.pipeline.ProcessDetections(ctx, req.Images, observer)
	if err != nil {
		parseRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, requestID, "processing_error", err.Error())
		return
	}
	s.observe("websocket", res, time.Since(start))

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      wsTypeResult,
		RequestID: requestID,
		Progress:  1,
		Result:    newParseResult(res, req.Debug),
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      wsTypeError,
		RequestID: requestID,
		Error:     message,
		ErrorType: errorType,
	})
}
