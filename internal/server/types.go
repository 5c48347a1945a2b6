package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/layout"
	"github.com/MeKo-Tech/feedocr/internal/ocr"
	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    *pipeline.Pipeline
	store       storage.Store
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	logger      *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Engine  string `json:"engine,omitempty"`
	Time    string `json:"time"`
}

// ParseRequest carries the detections of a screenshot sequence, one list
// per screenshot in scroll order. A bare JSON array of lists is accepted too.
type ParseRequest struct {
	Images [][]ocr.Detection `json:"images"`
	Debug  bool              `json:"debug,omitempty"`
}

// ParseResult is the parsed document of one request.
type ParseResult struct {
	Document   layout.Document     `json:"document"`
	Offsets    []float64           `json:"offsets"`
	Boxes      []pipeline.DebugBox `json:"boxes,omitempty"`
	Images     int                 `json:"images"`
	Processing struct {
		OCRTimeMs   int64 `json:"ocr_time_ms,omitempty"`
		TotalTimeMs int64 `json:"total_time_ms"`
	} `json:"processing"`
}

type ParseResponse struct {
	Success bool         `json:"success"`
	Result  *ParseResult `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type DocumentsResponse struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// NewServer creates a server around pl. The pipeline needs an OCR engine
// only for screenshot uploads; store may be nil, which disables /documents.
func NewServer(config Config, pl *pipeline.Pipeline, store storage.Store, logger *slog.Logger) (*Server, error) {
	if pl == nil {
		return nil, errors.New("pipeline is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 50
	}
	timeout := time.Duration(config.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	origin := config.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	return &Server{
		pipeline:    pl,
		store:       store,
		corsOrigin:  origin,
		maxUploadMB: maxUpload,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	var errs []error
	if s.pipeline != nil {
		errs = append(errs, s.pipeline.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/parse", s.corsMiddleware(s.parseHandler))
	mux.HandleFunc("/parse/images", s.corsMiddleware(s.parseImagesHandler))
	mux.HandleFunc("/ws", s.parseWebSocketHandler)
	mux.HandleFunc("/documents", s.corsMiddleware(s.documentsHandler))
	mux.HandleFunc("/documents/{id}", s.corsMiddleware(s.documentHandler))
}
