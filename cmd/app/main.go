// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-response-queue/internal/config"
	"ai-response-queue/internal/domain/ports/adapter"
	pg "ai-response-queue/internal/infra/db/postgres"
	"ai-response-queue/internal/infra/generator"
	"ai-response-queue/internal/infra/logging"
	"ai-response-queue/internal/infra/metrics"
	red "ai-response-queue/internal/infra/redis"
	"ai-response-queue/internal/infra/scheduler"
	"ai-response-queue/internal/infra/web"
	"ai-response-queue/internal/infra/worker"
	"ai-response-queue/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (open worker endpoint, noop generator fallback)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Runtime.Dev {
		log.Printf("[DEV MODE] Enabled")
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	jobRepo := pg.NewJobRepo(pool)
	messageRepo := pg.NewMessageRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Redis (optional: live update fan-out + enqueue rate limiting) ----
	var (
		sink    usecase.UpdateSink
		limiter usecase.Limiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		sink = red.NewUpdatePublisher(redisClient, logger)
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis not configured; live update fan-out and rate limiting disabled")
	}

	// ---- Use cases ----
	queueSvc := usecase.NewQueueService(jobRepo, sink, logger)
	enqueueUC := usecase.NewEnqueueUseCase(queueSvc, messageRepo, txManager, limiter, red.ConversationKey, cfg.Enqueue.RatePerMinute, logger)

	// ---- Response generator ----
	var gen adapter.ResponseGenerator
	if cfg.AI.OpenAIKey != "" {
		gen, err = generator.NewOpenAIGenerator(cfg.AI.OpenAIKey, cfg.AI.DefaultModel, messageRepo, logger)
		if err != nil {
			log.Fatalf("openai generator: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("generator: OpenAI")
	} else if cfg.Runtime.Dev {
		gen = generator.NewNoopGenerator(messageRepo)
		logger.Info().Msg("generator: noop (dev)")
	} else {
		log.Fatalf("no generator configured: set ai.openai_key (or OPENAI_API_KEY) in %s", *cfgPath)
	}

	// ---- Worker side ----
	executor := worker.NewExecutor(queueSvc, gen, logger)

	hintPool := worker.NewPool(cfg.Worker.HintWorkers, logger)
	hintPool.Start(ctx)
	defer hintPool.Stop()

	dispatcher := web.NewHintDispatcher(cfg.Server.SelfURL, cfg.Worker.Secret, hintPool, logger)

	sched := scheduler.NewScheduler(cfg.Worker.SweepInterval, cfg.Worker.SweepLimit, executor, logger)
	sched.Start(ctx)
	defer sched.Stop()

	// ---- HTTP ----
	server := web.NewServer(enqueueUC, queueSvc, executor, dispatcher, cfg.Worker.Secret, cfg.Runtime.Dev, cfg.Worker.SweepLimit, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info().Msg("shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
