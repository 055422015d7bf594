package server

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/cascade"
	"github.com/MeKo-Tech/qrscan/internal/utils"
	"github.com/MeKo-Tech/qrscan/internal/version"
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

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding health response: %v\n", err)
	}
}

// detectHandler runs the detection cascade on an uploaded image.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	img, ok := s.readUploadedImage(w, r)
	if !ok {
		return
	}

	start := time.Now()
	outcome, err := s.cascade.Run(img)
	duration := time.Since(start)

	if err != nil {
		detectRequestsTotal.WithLabelValues("single", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusInternalServerError)
		return
	}

	detectRequestsTotal.WithLabelValues("single", "success").Inc()
	detectDuration.WithLabelValues("single").Observe(duration.Seconds())
	cascadeAttempts.Observe(float64(outcome.Attempts))
	if outcome.Detected {
		cascadeVariantHits.WithLabelValues(variantLabel(outcome.Variant)).Inc()
	}

	result := s.buildDetectResult(img, outcome, r, duration)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(DetectResponse{Success: true, Result: result}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding detect response: %v\n", err)
	}
}

// detectMultiHandler runs multi-code detection on an uploaded image.
func (s *Server) detectMultiHandler(w http.ResponseWriter, r *http.Request) {
	img, ok := s.readUploadedImage(w, r)
	if !ok {
		return
	}

	start := time.Now()
	outcome, err := s.cascade.RunMulti(img)
	duration := time.Since(start)

	if err != nil {
		detectRequestsTotal.WithLabelValues("multi", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusInternalServerError)
		return
	}

	detectRequestsTotal.WithLabelValues("multi", "success").Inc()
	detectDuration.WithLabelValues("multi").Observe(duration.Seconds())

	codes := make([]DetectResult, 0, len(outcome.Codes))
	for _, code := range outcome.Codes {
		dr := s.buildDetectResult(img, code, r, 0)
		codes = append(codes, *dr)
	}

	result := &MultiDetectResult{
		Detected: outcome.Detected,
		Count:    outcome.Count,
		Codes:    codes,
		TimeMs:   duration.Milliseconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(MultiDetectResponse{Success: true, Result: result}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding multi detect response: %v\n", err)
	}
}

// hasCodeHandler reports code presence without running the full cascade.
func (s *Server) hasCodeHandler(w http.ResponseWriter, r *http.Request) {
	img, ok := s.readUploadedImage(w, r)
	if !ok {
		return
	}

	start := time.Now()
	has, corners, err := s.cascade.HasCode(img)
	duration := time.Since(start)

	if err != nil {
		detectRequestsTotal.WithLabelValues("has_code", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusInternalServerError)
		return
	}

	detectRequestsTotal.WithLabelValues("has_code", "success").Inc()
	detectDuration.WithLabelValues("has_code").Observe(duration.Seconds())

	w.Header().Set("Content-Type", "application/json")
	response := HasCodeResponse{Success: true, HasCode: has, Corners: toPointJSON(corners)}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding has-code response: %v\n", err)
	}
}

// readUploadedImage parses a multipart upload and decodes the "image"
// part. It writes the error response itself when returning ok=false.
func (s *Server) readUploadedImage(w http.ResponseWriter, r *http.Request) (image.Image, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "body too large") || strings.Contains(msg, "request body too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, false
	}
	uploadSizeBytes.Observe(float64(len(data)))

	img, _, err := utils.DecodeImageBytes(data)
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return nil, false
	}

	return img, true
}

// buildDetectResult converts a cascade outcome into an API result,
// attaching the cropped code region as a data URI when enabled.
func (s *Server) buildDetectResult(
	img image.Image,
	outcome cascade.Outcome,
	r *http.Request,
	duration time.Duration,
) *DetectResult {
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

	if outcome.Detected && s.regionRequested(r) {
		padding := s.requestPadding(r)
		if region, ok := cascade.ExtractRegion(img, outcome.Corners, padding); ok {
			if data, err := cascade.EncodePNG(region.Image); err == nil {
				result.Region = cascade.DataURI(data)
			}
		}
	}

	return result
}

// regionRequested reports whether the response should include the
// cropped region. The server default can be overridden per request
// with region=0 or region=1.
func (s *Server) regionRequested(r *http.Request) bool {
	val := r.FormValue("region")
	if val == "" {
		val = r.URL.Query().Get("region")
	}
	switch val {
	case "0", "false":
		return false
	case "1", "true":
		return true
	default:
		return s.includeRegion
	}
}

// requestPadding returns the region padding, allowing a per-request
// override via the padding form or query value.
func (s *Server) requestPadding(r *http.Request) int {
	val := r.FormValue("padding")
	if val == "" {
		val = r.URL.Query().Get("padding")
	}
	if val != "" {
		if p, err := strconv.Atoi(val); err == nil && p >= 0 {
			return p
		}
	}
	return s.padding
}

func toPointJSON(pts []utils.Point) []PointJSON {
	if len(pts) == 0 {
		return nil
	}
	out := make([]PointJSON, len(pts))
	for i, p := range pts {
		out[i] = PointJSON{X: p.X, Y: p.Y}
	}
	return out
}

// variantLabel maps an empty variant name to a stable metric label.
func variantLabel(variant string) string {
	if variant == "" {
		return "baseline"
	}
	return variant
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := DetectResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		// Log error, but can't send another response
		fmt.Fprintf(os.Stderr, "Error writing error response: %v\n", err)
	}
}
