package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the QR detection API",
	Long: `Start an HTTP server that provides REST API endpoints for QR code
detection.

The server provides the following endpoints:
  POST /v1/detect       - Detect and decode a QR code in an uploaded image
  POST /v1/detect/multi - Detect multiple codes
  POST /v1/has-code     - Check for code presence
  GET  /v1/detect/ws    - WebSocket detection with live cascade progress
  GET  /health          - Health check endpoint
  GET  /metrics         - Prometheus metrics

Examples:
  qrscan serve
  qrscan serve --port 8080
  qrscan serve --host 0.0.0.0 --port 3000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		// CLI flag overrides
		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("cors-origin") {
			cfg.Server.CORSOrigin, _ = cmd.Flags().GetString("cors-origin")
		}
		if cmd.Flags().Changed("max-upload-size") {
			cfg.Server.MaxUploadMB, _ = cmd.Flags().GetInt64("max-upload-size")
		}
		if cmd.Flags().Changed("timeout") {
			cfg.Server.TimeoutSec, _ = cmd.Flags().GetInt("timeout")
		}
		if cmd.Flags().Changed("padding") {
			cfg.Cascade.Padding, _ = cmd.Flags().GetInt("padding")
		}
		if cmd.Flags().Changed("rate-limit-enabled") {
			cfg.Server.RateLimitEnabled, _ = cmd.Flags().GetBool("rate-limit-enabled")
		}
		if cmd.Flags().Changed("requests-per-minute") {
			cfg.Server.RequestsPerMinute, _ = cmd.Flags().GetInt("requests-per-minute")
		}
		if cmd.Flags().Changed("requests-per-hour") {
			cfg.Server.RequestsPerHour, _ = cmd.Flags().GetInt("requests-per-hour")
		}
		if cmd.Flags().Changed("max-requests-per-day") {
			cfg.Server.MaxRequestsPerDay, _ = cmd.Flags().GetInt("max-requests-per-day")
		}
		if cmd.Flags().Changed("max-data-per-day") {
			cfg.Server.MaxDataPerDayMB, _ = cmd.Flags().GetInt64("max-data-per-day")
		}
		shutdownTimeout, _ := cmd.Flags().GetInt("shutdown-timeout")

		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		qrServer, err := server.NewServer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		mux := http.NewServeMux()
		qrServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(cfg.Server.TimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(cfg.Server.TimeoutSec) * time.Second,
		}

		go func() {
			slog.Info("Starting QR detection server", "host", cfg.Server.Host, "port", cfg.Server.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int64("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 120, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("padding", 10, "padding in pixels around extracted code regions")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 10000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 1024, "maximum data processed per day per client (MB)")
}
