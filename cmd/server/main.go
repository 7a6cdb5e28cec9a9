// Command server exposes the perforation search over REST and JSON-RPC.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/copyleftdev/hexshield/internal/config"
	apperrors "github.com/copyleftdev/hexshield/internal/errors"
	"github.com/copyleftdev/hexshield/internal/logging"
	"github.com/copyleftdev/hexshield/internal/metrics"
	"github.com/copyleftdev/hexshield/internal/server"
)

const serviceName = "hexshield-search-server"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	serviceLogger := logger.WithFields(map[string]interface{}{
		"service": serviceName,
		"env":     cfg.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, serviceLogger); err != nil {
		serviceLogger.Error("Server exited with error", map[string]interface{}{"error": err.Error()})
		stop()
		os.Exit(1)
	}
	serviceLogger.Info("server exited properly")
}

// run serves until ctx is cancelled, then drains HTTP traffic and cancels
// every search still in flight.
func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	collector, err := metrics.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	srv := server.NewServer(cfg, logger,
		server.WithMetrics(collector),
		server.WithZapLogger(logging.NewZapLogger(logger)),
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      newRouter(logger, collector, srv),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", map[string]interface{}{
			"address": httpServer.Addr,
			"workers": cfg.Search.Workers,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			srv.Close()
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}
	<-serveErr
	if err := srv.Close(); err != nil {
		return fmt.Errorf("close search server: %w", err)
	}
	return nil
}

func newRouter(logger *logging.Logger, collector *metrics.Collector, srv *server.Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(apperrors.RecoveryMiddleware(logger))
	r.Use(apperrors.ErrorHandler(logger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Debug("Health check")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", collector.Handler())

	srv.RegisterRoutes(r)
	return r
}
