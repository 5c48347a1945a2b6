package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/ocr"
	"github.com/MeKo-Tech/feedocr/internal/render"
)

// parseImagesHandler runs OCR on uploaded screenshots and parses the result.
// The multipart field "images" holds the screenshots in scroll order.
func (s *Server) parseImagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pipeline.Engine() == nil {
		s.writeErrorResponse(w, "OCR engine not configured", http.StatusServiceUnavailable)
		parseRequestsTotal.WithLabelValues("images", "error").Inc()
		return
	}

	images, status, err := s.readUploadedImages(w, r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), status)
		parseRequestsTotal.WithLabelValues("images", "error").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.ProcessImages(ctx, images)
	if err != nil {
		parseRequestsTotal.WithLabelValues("images", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("OCR processing failed: %v", err), statusForError(err))
		return
	}
	s.observe("images", res, time.Since(start))

	debug, _ := strconv.ParseBool(r.FormValue("debug"))
	s.writeJSON(w, http.StatusOK, ParseResponse{Success: true, Result: newParseResult(res, debug)})
}

// readUploadedImages returns the screenshots of the request in upload order,
// with the status code to use when they are unusable.
func (s *Server) readUploadedImages(w http.ResponseWriter, r *http.Request) ([]ocr.Image, int, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, errors.New("upload too large")
		}
		return nil, http.StatusBadRequest, errors.New("failed to parse form data")
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		return nil, http.StatusBadRequest, errors.New("no screenshots provided")
	}

	images := make([]ocr.Image, 0, len(headers))
	for i, header := range headers {
		uploadSizeBytes.Observe(float64(header.Size))

		f, err := header.Open()
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("screenshot %d: %w", i, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("screenshot %d: %w", i, err)
		}

		// Reject anything that is not an image before the engine sees it
		if _, err := render.Decode(data); err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("screenshot %d (%s): invalid image format", i, header.Filename)
		}
		images = append(images, ocr.Image{Data: data})
	}
	return images, http.StatusOK, nil
}
