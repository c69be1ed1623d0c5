package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/app"
	"github.com/alaa-alshamy/ElasticPress/internal/metrics"
	"github.com/alaa-alshamy/ElasticPress/internal/transport/api"
	chiTransport "github.com/alaa-alshamy/ElasticPress/internal/transport/chi"
	"github.com/alaa-alshamy/ElasticPress/internal/version"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			port, _ := cmd.Flags().GetInt("port")
			return withApp(cmd, func(ctx context.Context, rt *session, a *app.App) error {
				if port > 0 {
					rt.cfg.HTTP.Port = port
				}
				return serve(ctx, rt, a)
			})
		},
	}
	cmd.Flags().Int("port", 0, "listen port (overrides http.port)")
	return cmd
}

func serve(ctx context.Context, rt *session, a *app.App) error {
	logger := rt.logger
	cfg := rt.cfg

	logger.Info("Starting query API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", rt.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("search_driver", cfg.Search.Driver),
		zap.String("bus_driver", cfg.Bus.Driver),
		zap.Bool("semantic", a.Embedder != nil),
	)

	if err := a.WatchBlocks(); err != nil {
		// Blocks are re-read on the next restart; configured fields still work.
		logger.Warn("Facet blocks watcher disabled", zap.Error(err))
	}

	server := chiTransport.NewServer(chiTransport.Dependencies{
		Query:    a.Query,
		Facets:   a.Facets,
		Content:  a.Content,
		Events:   a.Bus,
		Versions: a.Versions,
		Health:   a.Health,
		Index:    cfg.Search.Index,
	}, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      newRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  cfg.HTTP.ReadTimeout(),
		WriteTimeout: cfg.HTTP.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func newRouter(si api.ServerInterface, apiKeys []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())
	api.HandlerWithOptions(si, api.ChiServerOptions{
		BaseRouter: r,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{
				Code:    api.ErrorResponseCodeBadRequest,
				Message: err.Error(),
			})
		},
	})
	return r
}
