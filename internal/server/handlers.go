package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/box"
	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/storage"
	"github.com/MeKo-Tech/feedocr/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.pipeline != nil && s.pipeline.Engine() != nil {
		response.Engine = s.pipeline.Engine().Name()
	}
	s.writeJSON(w, http.StatusOK, response)
}

// parseHandler runs the stages on detections posted as JSON.
func (s *Server) parseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "Request body too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to read request body", http.StatusBadRequest)
		}
		parseRequestsTotal.WithLabelValues("detections", "error").Inc()
		return
	}

	req, err := decodeParseRequest(data)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		parseRequestsTotal.WithLabelValues("detections", "error").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.ProcessDetections(ctx, req.Images)
	if err != nil {
		parseRequestsTotal.WithLabelValues("detections", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Parsing failed: %v", err), statusForError(err))
		return
	}
	s.observe("detections", res, time.Since(start))
	s.writeJSON(w, http.StatusOK, ParseResponse{Success: true, Result: newParseResult(res, req.Debug)})
}

// documentsHandler lists the ids of stored documents.
func (s *Server) documentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		s.writeErrorResponse(w, "Storage not configured", http.StatusServiceUnavailable)
		return
	}
	recs, err := s.store.List(r.Context())
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Listing documents failed: %v", err), http.StatusInternalServerError)
		return
	}
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	s.writeJSON(w, http.StatusOK, DocumentsResponse{IDs: ids, Count: len(ids)})
}

// documentHandler returns one stored record.
func (s *Server) documentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		s.writeErrorResponse(w, "Storage not configured", http.StatusServiceUnavailable)
		return
	}
	rec, err := s.store.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeErrorResponse(w, "Document not found", http.StatusNotFound)
	case err != nil:
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		s.writeJSON(w, http.StatusOK, rec)
	}
}

// decodeParseRequest accepts {"images": [[...], ...]} or a bare [[...], ...].
func decodeParseRequest(data []byte) (ParseRequest, error) {
	var req ParseRequest
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return req, errors.New("empty request body")
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &req.Images); err != nil {
			return req, fmt.Errorf("invalid detections: %w", err)
		}
	} else if err := json.Unmarshal(trimmed, &req); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	if len(req.Images) == 0 {
		return req, errors.New("no screenshots in request")
	}
	return req, nil
}

func newParseResult(res *pipeline.Result, debug bool) *ParseResult {
	out := &ParseResult{
		Document: res.Document,
		Offsets:  res.Offsets,
		Images:   len(res.Images),
	}
	if debug {
		out.Boxes = pipeline.DebugBoxes(res.Deduped)
	}
	out.Processing.OCRTimeMs = time.Duration(res.Timing.OCRNs).Milliseconds()
	out.Processing.TotalTimeMs = time.Duration(res.Timing.TotalNs).Milliseconds()
	return out
}

// observe records the metrics of a successful parse.
func (s *Server) observe(kind string, res *pipeline.Result, d time.Duration) {
	parseRequestsTotal.WithLabelValues(kind, "success").Inc()
	parseDuration.WithLabelValues(kind).Observe(d.Seconds())
	imagesPerRequest.WithLabelValues(kind).Observe(float64(len(res.Images)))
	commentsParsed.WithLabelValues(kind).Observe(float64(len(res.Document.Comments)))
}

// statusForError maps pipeline errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, box.ErrInvalidBox), errors.Is(err, box.ErrInvalidConfidence):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ParseResponse{Success: false, Error: message})
}
