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

	"github.com/MeKo-Tech/feedocr/internal/pipeline"
	"github.com/MeKo-Tech/feedocr/internal/server"
	"github.com/MeKo-Tech/feedocr/internal/storage"
	"github.com/MeKo-Tech/feedocr/internal/version"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the parse API",
	Long: `Start an HTTP server that parses screenshot sequences.

The server provides the following endpoints:
  POST /parse          - Parse per-screenshot OCR detections (JSON)
  POST /parse/images   - Parse uploaded screenshots (multipart "images")
  GET  /ws             - Parse over a websocket with stage progress
  GET  /documents      - List stored document ids
  GET  /documents/{id} - Fetch a stored document
  GET  /health         - Health check endpoint
  GET  /metrics        - Prometheus metrics

Examples:
  feedocr serve
  feedocr serve --port 8080
  feedocr serve --host 0.0.0.0 --port 3000 --detections-only`,
	RunE: runServeCommand,
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

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
		cfg.Server.MaxUploadMB, _ = cmd.Flags().GetInt("max-upload-size")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Server.TimeoutSec, _ = cmd.Flags().GetInt("timeout")
	}
	if cmd.Flags().Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	logger := slog.Default()

	var (
		pl  *pipeline.Pipeline
		err error
	)
	if detectionsOnly, _ := cmd.Flags().GetBool("detections-only"); detectionsOnly {
		pcfg, perr := cfg.ToPipelineConfig()
		if perr != nil {
			return perr
		}
		pl, err = pipeline.NewBuilder().WithConfig(pcfg).WithLogger(logger).Build()
	} else {
		pl, err = buildPipeline(ctx, cfg, logger, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	var store storage.Store
	if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
		store, err = openStore(ctx, cfg)
		if err != nil {
			_ = pl.Close()
			return err
		}
	}

	srv, err := server.NewServer(server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		TimeoutSec:  cfg.Server.TimeoutSec,
	}, pl, store, logger)
	if err != nil {
		_ = pl.Close()
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
	}

	go func() {
		logger.Info("Starting feedocr server", "host", cfg.Server.Host, "port", cfg.Server.Port, "version", version.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	logger.Info("Starting graceful shutdown", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting requests before releasing the engine and store
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Close(); err != nil {
		logger.Error("Server cleanup error", "error", err)
	}

	logger.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("detections-only", false, "run without an OCR engine; /parse/images answers 503")
	serveCmd.Flags().Bool("no-store", false, "run without a storage backend; /documents answers 503")
}
