package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/voiceover/internal/api"
	"github.com/nikhilbhutani/voiceover/internal/api/handlers"
	"github.com/nikhilbhutani/voiceover/internal/audio"
	"github.com/nikhilbhutani/voiceover/internal/audit"
	"github.com/nikhilbhutani/voiceover/internal/cache"
	"github.com/nikhilbhutani/voiceover/internal/config"
	"github.com/nikhilbhutani/voiceover/internal/database"
	"github.com/nikhilbhutani/voiceover/internal/metrics"
	"github.com/nikhilbhutani/voiceover/internal/queue"
	"github.com/nikhilbhutani/voiceover/internal/stt"
	"github.com/nikhilbhutani/voiceover/internal/tempfiles"
	"github.com/nikhilbhutani/voiceover/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	tmp, err := tempfiles.New(cfg.Temp.Dir)
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := tmp.Reset(); err != nil {
			slog.Warn("temp dir cleanup failed", "error", err)
		}
	}()

	// Model backends
	sttProvider, err := stt.NewProvider(cfg.STT)
	if err != nil {
		slog.Error("failed to create stt provider", "error", err)
		os.Exit(1)
	}
	vocoder, err := tts.NewVocoder(cfg.TTS)
	if err != nil {
		slog.Error("failed to create tts vocoder", "error", err)
		os.Exit(1)
	}

	transcriber := stt.NewTranscriber(sttProvider,
		audio.NewConverter(cfg.Audio.FFmpegPath, cfg.Audio.SampleRate), tmp,
		stt.TranscriberOptions{Language: cfg.STT.Language, BeamSize: cfg.STT.BeamSize})
	synthesizer := tts.NewSynthesizer(vocoder, tmp, tts.Params{
		Alpha:          cfg.TTS.Alpha,
		DiffusionSteps: cfg.TTS.DiffusionSteps,
		EmbeddingScale: cfg.TTS.EmbeddingScale,
	}, nil)

	deps := api.Deps{
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		TempDir:     tmp,
		Checks:      map[string]handlers.Check{},
		Metrics:     metrics.NewMetrics(prometheus.DefaultRegisterer),
	}

	// Database connection (optional, audit log is disabled without it)
	if cfg.Database.URL == "" {
		slog.Warn("DATABASE_URL not set, running without audit log")
	} else if db, err := database.NewPool(ctx, cfg.Database); err != nil {
		slog.Warn("database unavailable, running without audit log", "error", err)
	} else {
		defer db.Close()

		if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
			slog.Warn("migrations failed", "error", err)
		}

		auditSvc := audit.NewService(db)
		deps.Audit = auditSvc
		deps.AuditReader = auditSvc
		deps.Checks["database"] = db.Ping
	}

	// Redis connection (optional, async alignment jobs are disabled without it)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without async alignment", "error", err)
	} else {
		queueClient := queue.NewClient(cfg.Redis)
		defer queueClient.Close()

		deps.Jobs = cache.NewJobStore(cache.NewCache(rdb, "voiceover:"), cfg.Align.JobTTL)
		deps.Queue = queueClient
		deps.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// Setup router
	router := api.NewRouter(cfg, deps)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(),
			"stt", sttProvider.Name(), "tts", vocoder.Name(), "temp_dir", tmp.Path())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	_ = router.Close(shutdownCtx)
	slog.Info("server stopped")
}
