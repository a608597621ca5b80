// Package server is the HTTP transport: it validates scan requests,
// hands them to the orchestrator, and maps failures to JSON error
// responses.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"itemscan/internal/extract"
	"itemscan/internal/llm"
	"itemscan/internal/scan"
)

const (
	errMissingKey   = "GEMINI_API_KEY is not configured."
	errInvalidBody  = "Invalid JSON in request body."
	errMissingImage = "Missing base64 image in request body."
	errBadResponse  = "Unexpected response format from vision service."
)

const defaultMediaType = "image/jpeg"

// Media type is advisory metadata for the vision call only, so an
// unknown value falls back to jpeg instead of rejecting the request.
var allowedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type Server struct {
	orchestrator     *scan.Orchestrator
	visionConfigured bool
}

func New(orchestrator *scan.Orchestrator, visionConfigured bool) *Server {
	return &Server{orchestrator: orchestrator, visionConfigured: visionConfigured}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/api/scan", s.handleScan)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scanBody struct {
	Image     *string `json:"image"`
	MediaType string  `json:"mediaType"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if !s.visionConfigured {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": errMissingKey})
		return
	}

	var body scanBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errInvalidBody})
		return
	}
	if body.Image == nil || *body.Image == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMissingImage})
		return
	}
	image, err := base64.StdEncoding.DecodeString(*body.Image)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMissingImage})
		return
	}

	mediaType := body.MediaType
	if !allowedMediaTypes[mediaType] {
		mediaType = defaultMediaType
	}

	result, err := s.orchestrator.Scan(r.Context(), scan.Request{Image: image, MediaType: mediaType})
	if err != nil {
		writeScanError(w, err)
		return
	}

	resp := make(map[string]any, len(result.Analysis)+1)
	for k, v := range result.Analysis {
		resp[k] = v
	}
	resp["webResults"] = result.WebResults
	writeJSON(w, http.StatusOK, resp)
}

// writeScanError maps vision chain failures to responses. Dispatch is
// on tagged error types, never on message text. Extraction and
// incomplete-analysis failures carry the raw model output so callers
// can see what the service could not parse.
func writeScanError(w http.ResponseWriter, err error) {
	var extractErr *extract.Error
	if errors.As(err, &extractErr) {
		log.Warn().Str("raw", extractErr.Raw).Msg("unparseable vision response")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": errBadResponse,
			"raw":   extractErr.Raw,
		})
		return
	}

	var incompleteErr *llm.IncompleteError
	if errors.As(err, &incompleteErr) {
		log.Warn().Strs("missing", incompleteErr.Missing).Msg("incomplete vision analysis")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": errBadResponse,
			"raw":   incompleteErr.Raw,
		})
		return
	}

	log.Error().Err(err).Msg("scan failed")
	writeJSON(w, http.StatusBadGateway, map[string]string{
		"error": "API request failed: " + err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
