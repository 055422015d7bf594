// Package server provides the HTTP and WebSocket API for QR code
// detection.
package server

import (
	"net/http"

	"github.com/MeKo-Tech/qrscan/internal/cascade"
	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/detect"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	detector      detect.Detector
	cascade       *cascade.Controller
	corsOrigin    string
	maxUploadMB   int64
	timeoutSec    int
	includeRegion bool
	padding       int
	rateLimiter   *RateLimiter
}

// PointJSON is a corner point in API responses.
type PointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DetectResult describes a single detection outcome.
type DetectResult struct {
	Detected bool        `json:"detected"`
	Payload  string      `json:"payload,omitempty"`
	Corners  []PointJSON `json:"corners,omitempty"`
	Variant  string      `json:"variant,omitempty"`
	Attempts int         `json:"attempts"`
	Region   string      `json:"region,omitempty"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	TimeMs   int64       `json:"time_ms"`
}

// DetectResponse is the envelope for /v1/detect.
type DetectResponse struct {
	Success bool          `json:"success"`
	Result  *DetectResult `json:"result,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// MultiDetectResult describes a multi-code detection outcome.
type MultiDetectResult struct {
	Detected bool           `json:"detected"`
	Count    int            `json:"count"`
	Codes    []DetectResult `json:"codes"`
	TimeMs   int64          `json:"time_ms"`
}

// MultiDetectResponse is the envelope for /v1/detect/multi.
type MultiDetectResponse struct {
	Success bool               `json:"success"`
	Result  *MultiDetectResult `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// HasCodeResponse is the envelope for /v1/has-code.
type HasCodeResponse struct {
	Success bool        `json:"success"`
	HasCode bool        `json:"has_code"`
	Corners []PointJSON `json:"corners,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse reports server health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// NewServer creates a QR detection server from the given configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	det := detect.NewZXing()

	s := &Server{
		detector:      det,
		cascade:       cascade.New(det),
		corsOrigin:    cfg.Server.CORSOrigin,
		maxUploadMB:   cfg.Server.MaxUploadMB,
		timeoutSec:    cfg.Server.TimeoutSec,
		includeRegion: cfg.Cascade.IncludeRegion,
		padding:       cfg.Cascade.Padding,
	}

	if cfg.Server.RateLimitEnabled {
		s.rateLimiter = NewRateLimiter(
			cfg.Server.RequestsPerMinute,
			cfg.Server.RequestsPerHour,
			cfg.Server.MaxRequestsPerDay,
			cfg.Server.MaxDataPerDayMB*1024*1024,
		)
	}

	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/v1/detect", s.corsMiddleware(s.rateLimitMiddleware(s.detectHandler)))
	mux.HandleFunc("/v1/detect/multi", s.corsMiddleware(s.rateLimitMiddleware(s.detectMultiHandler)))
	mux.HandleFunc("/v1/has-code", s.corsMiddleware(s.rateLimitMiddleware(s.hasCodeHandler)))
	mux.HandleFunc("/v1/detect/ws", s.detectWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
