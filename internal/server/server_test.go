package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itemscan/internal/extract"
	"itemscan/internal/llm"
	"itemscan/internal/scan"
)

var testAnalysis = llm.Analysis{
	"description":    "A red ceramic mug",
	"valueRange":     "$5-$10",
	"whereToBuySell": "Thrift stores",
	"backgroundInfo": "Mugs are common.",
}

type stubAnalyzer struct {
	analysis llm.Analysis
	err      error

	lastMediaType string
	lastImage     []byte
}

func (s *stubAnalyzer) Analyze(ctx context.Context, image []byte, mediaType string) (llm.Analysis, error) {
	s.lastImage = image
	s.lastMediaType = mediaType
	return s.analysis, s.err
}

func newTestServer(analyzer llm.Analyzer, visionConfigured bool) *Server {
	return New(scan.New(analyzer, nil, nil, time.Minute), visionConfigured)
}

func postScan(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func validImage() string {
	return base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
}

func TestScanSuccess(t *testing.T) {
	analyzer := &stubAnalyzer{analysis: testAnalysis}
	srv := newTestServer(analyzer, true)

	rec := postScan(t, srv, `{"image":"`+validImage()+`","mediaType":"image/png"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "A red ceramic mug", body["description"])
	assert.Equal(t, "$5-$10", body["valueRange"])
	assert.Equal(t, "Thrift stores", body["whereToBuySell"])
	assert.Equal(t, "Mugs are common.", body["backgroundInfo"])
	assert.Equal(t, []any{}, body["webResults"])

	assert.Equal(t, []byte("fake image bytes"), analyzer.lastImage)
	assert.Equal(t, "image/png", analyzer.lastMediaType)
}

func TestScanForwardsExtraAnalysisKeys(t *testing.T) {
	analysis := llm.Analysis{}
	for k, v := range testAnalysis {
		analysis[k] = v
	}
	analysis["confidence"] = "high"

	srv := newTestServer(&stubAnalyzer{analysis: analysis}, true)
	rec := postScan(t, srv, `{"image":"`+validImage()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "high", decodeBody(t, rec)["confidence"])
}

func TestScanUnknownMediaTypeDefaultsToJpeg(t *testing.T) {
	tests := []struct {
		name      string
		mediaType string
	}{
		{"unknown type", `"image/tiff"`},
		{"absent", `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &stubAnalyzer{analysis: testAnalysis}
			srv := newTestServer(analyzer, true)

			rec := postScan(t, srv, `{"image":"`+validImage()+`","mediaType":`+tt.mediaType+`}`)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "image/jpeg", analyzer.lastMediaType)
		})
	}
}

func TestScanMissingVisionCredential(t *testing.T) {
	srv := newTestServer(&stubAnalyzer{}, false)

	rec := postScan(t, srv, `{"image":"`+validImage()+`"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "GEMINI_API_KEY is not configured.", decodeBody(t, rec)["error"])
}

func TestScanInvalidBody(t *testing.T) {
	srv := newTestServer(&stubAnalyzer{analysis: testAnalysis}, true)

	rec := postScan(t, srv, `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON in request body.", decodeBody(t, rec)["error"])
}

func TestScanMissingImage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"image field absent", `{"mediaType":"image/png"}`},
		{"image empty", `{"image":""}`},
		{"image not base64", `{"image":"не base64!!!"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&stubAnalyzer{analysis: testAnalysis}, true)
			rec := postScan(t, srv, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Missing base64 image in request body.", decodeBody(t, rec)["error"])
		})
	}
}

func TestScanExtractionFailure(t *testing.T) {
	prose := "This appears to be a coffee mug, but I cannot provide JSON."
	srv := newTestServer(&stubAnalyzer{err: &extract.Error{Raw: prose}}, true)

	rec := postScan(t, srv, `{"image":"`+validImage()+`"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Unexpected response format from vision service.", body["error"])
	assert.Equal(t, prose, body["raw"])
}

func TestScanIncompleteAnalysis(t *testing.T) {
	srv := newTestServer(&stubAnalyzer{err: &llm.IncompleteError{
		Missing: []string{"valueRange"},
		Raw:     `{"description":"mug"}`,
	}}, true)

	rec := postScan(t, srv, `{"image":"`+validImage()+`"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Unexpected response format from vision service.", body["error"])
	assert.Equal(t, `{"description":"mug"}`, body["raw"])
}

func TestScanVisionServiceFailure(t *testing.T) {
	srv := newTestServer(&stubAnalyzer{err: errors.New("failed to generate content: connection reset")}, true)

	rec := postScan(t, srv, `{"image":"`+validImage()+`"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "API request failed: failed to generate content: connection reset", body["error"])
	assert.NotContains(t, body, "raw")
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&stubAnalyzer{}, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}
