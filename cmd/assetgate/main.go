package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/steelcrest/assetgate/internal/config"
	dbRedis "github.com/steelcrest/assetgate/internal/db/redis"
	"github.com/steelcrest/assetgate/internal/domain"
	logpkg "github.com/steelcrest/assetgate/internal/logger"
	"github.com/steelcrest/assetgate/internal/metrics"
	stagingrepo "github.com/steelcrest/assetgate/internal/repository/staging"
	"github.com/steelcrest/assetgate/internal/transport/backendapi"
	chiTransport "github.com/steelcrest/assetgate/internal/transport/chi"
	"github.com/steelcrest/assetgate/internal/transport/visionseek"
	assetsuc "github.com/steelcrest/assetgate/internal/usecase/assets"
	downloaduc "github.com/steelcrest/assetgate/internal/usecase/download"
	healthuc "github.com/steelcrest/assetgate/internal/usecase/health"
	searchuc "github.com/steelcrest/assetgate/internal/usecase/search"
	staginguc "github.com/steelcrest/assetgate/internal/usecase/staging"
	"github.com/steelcrest/assetgate/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting assetgate API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("similarity_endpoint", cfg.Similarity.Endpoint),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create staging store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the staging store to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Staging store not ready", zap.Error(err))
	}
	logger.Info("Connected to staging store")

	// Register provider metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	// Outbound clients — composition root
	backend := backendapi.New(&backendapi.Config{
		BaseURL: cfg.Backend.BaseURL,
		Tokens:  backendapi.StaticTokenSource(cfg.Backend.Token),
		Timeout: time.Duration(cfg.Backend.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	provider := visionseek.New(&visionseek.Config{
		Endpoint: cfg.Similarity.Endpoint,
		Timeout:  time.Duration(cfg.Similarity.TimeoutSec) * time.Second,
		Logger:   logger,
	})

	// Built-in retired CAD hosts plus any configured ones.
	retiredHosts := make([]string, 0, len(domain.DefaultRetiredCADHosts)+len(cfg.Similarity.RetiredCADHosts))
	retiredHosts = append(retiredHosts, domain.DefaultRetiredCADHosts...)
	retiredHosts = append(retiredHosts, cfg.Similarity.RetiredCADHosts...)

	// Repositories and use case services
	stagingRepo := stagingrepo.New(store, cfg.Staging.KeyPrefix, time.Duration(cfg.Staging.TTLHours)*time.Hour)
	stagingSvc := staginguc.New(stagingRepo, backend, logger)
	assetRegistry := assetsuc.NewRegistry(backend, backend, logger)
	downloadSvc := downloaduc.New(
		&http.Client{Timeout: time.Duration(cfg.Download.TimeoutSec) * time.Second},
		retiredHosts,
		logger,
	)
	searchRegistry := searchuc.NewRegistry(downloadSvc, provider, cfg.Backend.AssetBaseURL, retiredHosts, logger)
	healthSvc := healthuc.New(store, backend, provider)

	// Create chi server
	server := chiTransport.NewServer(stagingSvc, assetRegistry, downloadSvc, searchRegistry, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
