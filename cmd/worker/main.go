package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/voiceover/internal/cache"
	"github.com/nikhilbhutani/voiceover/internal/config"
	"github.com/nikhilbhutani/voiceover/internal/metrics"
	"github.com/nikhilbhutani/voiceover/internal/queue"
	"github.com/nikhilbhutani/voiceover/internal/queue/workers"
	"github.com/nikhilbhutani/voiceover/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	if addr := cfg.Worker.MetricsAddr; addr != "" {
		go func() {
			slog.Info("serving worker metrics", "addr", addr)
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	registry := queue.NewHandlersRegistry()

	// Register workers
	jobs := cache.NewJobStore(cache.NewCache(rdb, "voiceover:"), cfg.Align.JobTTL)
	notifier := webhook.NewNotifier(cfg.Align.CallbackSecret, 10*time.Second, cfg.Align.CallbackHosts...)
	alignWorker := workers.NewAlignWorker(jobs, notifier, m, cfg.Align.Workers)

	registry.Register(queue.TypeAlignBatch, asynq.HandlerFunc(alignWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
