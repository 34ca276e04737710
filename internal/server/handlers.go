package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/vision"
)

type processImageRequest struct {
	ImageData string `json:"imageData"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// configured is implemented by clients that can tell whether credentials are set.
type configured interface {
	Configured() bool
}

func (s *Server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if c, ok := s.vision.(configured); ok && !c.Configured() {
		logging.ErrorContext(ctx, "vision API key not configured")
		writeError(w, http.StatusInternalServerError, "API key not configured")
		return
	}

	var req processImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ImageData) == "" {
		writeError(w, http.StatusBadRequest, "No image data provided")
		return
	}

	raw, err := vision.DecodeImageData(req.ImageData)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid base64 image data")
		return
	}
	img, err := vision.PrepareImageBytes(raw, s.maxEdge)
	if err != nil {
		logging.DebugContext(ctx, "image rejected", logging.KeyError, err)
		writeError(w, http.StatusBadRequest, "Invalid image data")
		return
	}

	ext, err := s.vision.Extract(ctx, img)
	if err != nil {
		if errors.Is(err, errors.ErrMissingAPIKey) {
			writeError(w, http.StatusInternalServerError, "API key not configured")
			return
		}
		if ee, ok := errors.AsExternalServiceError(err); ok {
			writeError(w, http.StatusBadGateway, ee.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to process image")
		return
	}
	writeJSON(w, http.StatusOK, ext)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
