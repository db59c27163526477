// Package main is the entrypoint for the BookVoice API server.
package main

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

	"github.com/kiranshivaraju/bookvoice/internal/api"
	"github.com/kiranshivaraju/bookvoice/internal/api/handler"
	mw "github.com/kiranshivaraju/bookvoice/internal/api/middleware"
	"github.com/kiranshivaraju/bookvoice/internal/api/response"
	"github.com/kiranshivaraju/bookvoice/internal/artifact"
	"github.com/kiranshivaraju/bookvoice/internal/audio"
	"github.com/kiranshivaraju/bookvoice/internal/cache"
	"github.com/kiranshivaraju/bookvoice/internal/config"
	"github.com/kiranshivaraju/bookvoice/internal/library"
	"github.com/kiranshivaraju/bookvoice/internal/pipeline"
	"github.com/kiranshivaraju/bookvoice/internal/provider"
	"github.com/kiranshivaraju/bookvoice/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.Default()

	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"translation_provider", cfg.Translation.Provider,
		"tts_provider", cfg.TTS.Provider,
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create translation and speech providers
	translator, err := provider.NewTranslationProvider(cfg.Translation)
	if err != nil {
		return fmt.Errorf("create translation provider: %w", err)
	}
	speech, err := provider.NewSpeechProvider(cfg.TTS)
	if err != nil {
		return fmt.Errorf("create speech provider: %w", err)
	}
	slog.Info("providers initialized",
		"translation", cfg.Translation.Provider, "tts", cfg.TTS.Provider)

	// 6. Create store, artifact storage, and book library
	pgStore := store.NewPostgresStore(pool)

	artifacts, err := artifact.NewFSStore(cfg.Storage.ArtifactDir)
	if err != nil {
		return fmt.Errorf("create artifact store: %w", err)
	}
	books := library.NewFSSource(cfg.Storage.LibraryDir)

	// 7. Build pipeline and audio services
	merger := audio.NewMerger(cfg.Audio.FFmpegPath, cfg.Audio.FFprobePath)

	pipelineSvc := pipeline.NewService(pgStore, redisCache, translator, speech,
		artifacts, books, merger, pipeline.SettingsFromConfig(cfg), logger)
	audioSvc := audio.NewService(pgStore, books, artifacts, merger, redisCache,
		cfg.Audio.ChapterGap, logger)

	// 8. Build router with dependencies
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		RateLimit: rateLimit,

		HealthHandler:       healthHandler(pgStore, redisCache),
		TranslateHandler:    handler.NewTranslateHandler(pipelineSvc),
		SynthesizeHandler:   handler.NewSynthesizeHandler(pipelineSvc),
		JobStatusHandler:    handler.NewJobStatusHandler(pipelineSvc),
		CancelJobHandler:    handler.NewCancelJobHandler(pipelineSvc),
		ChapterAudioHandler: handler.NewChapterAudioHandler(audioSvc),
		PlaylistHandler:     handler.NewPlaylistHandler(audioSvc),
		MergeBookHandler:    handler.NewMergeBookHandler(audioSvc),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout. In-flight pipeline jobs keep running
	// until the process exits; their writes are safe to lose mid-flight
	// because chunk completion is recorded atomically.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
