package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"agora.app/verdict/common/id"
	"agora.app/verdict/common/llm"
	"agora.app/verdict/common/logger"
	"agora.app/verdict/common/otel"
	"agora.app/verdict/common/search"
	"agora.app/verdict/core/config"
	"agora.app/verdict/core/db"
	"agora.app/verdict/internal/pipeline"
	"agora.app/verdict/internal/queue"
	"agora.app/verdict/internal/store"
	"agora.app/verdict/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)
	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "verdict worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Queue.RedisGroup,
		"consumer_name", cfg.Queue.RedisConsumer)

	// Different node ID than the seed CLI so IDs never collide
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to ensure schema", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Queue.RedisStream)

	reasoningLLM, err := llm.NewClient(llm.Config{
		Provider: cfg.ReasoningLLM.Provider,
		APIKey:   cfg.ReasoningLLM.APIKey,
		BaseURL:  cfg.ReasoningLLM.BaseURL,
		Model:    cfg.ReasoningLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create reasoning client", "error", err)
		os.Exit(1)
	}

	searcher, err := search.New(search.Config{
		APIKey:      cfg.Tavily.APIKey,
		BaseURL:     cfg.Tavily.BaseURL,
		MaxResults:  cfg.Tavily.MaxResults,
		SearchDepth: cfg.Tavily.SearchDepth,
		Timeout:     cfg.Tavily.Timeout,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create search client", "error", err)
		os.Exit(1)
	}

	stores := store.NewStores(database.Querier())
	factChecker := pipeline.NewFactChecker(reasoningLLM, searcher)
	orchestrator := pipeline.NewOrchestrator(factChecker, stores.Topics(), stores.Arguments(), cfg.Verification)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Queue.RedisStream,
		Group:        cfg.Queue.RedisGroup,
		Consumer:     cfg.Queue.RedisConsumer,
		DLQStream:    cfg.Queue.RedisDLQStream,
		BatchSize:    1, // Verify one argument or topic at a time
		Block:        5 * time.Second,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	processor := worker.NewProcessor(orchestrator)

	w := worker.New(consumer, processor, worker.Config{
		MaxAttempts: cfg.Queue.MaxAttempts,
	})

	reclaimer := worker.NewReclaimer(redisClient, worker.ReclaimerConfig{
		Stream:    cfg.Queue.RedisStream,
		Group:     cfg.Queue.RedisGroup,
		Consumer:  cfg.Queue.RedisConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  1 * time.Minute,
		BatchSize: 10,
	}, consumer, w.HandleMessage)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop reclaimer first (quick)
	reclaimer.Stop()

	// Stop worker (may be mid-verification)
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
██╗   ██╗███████╗██████╗ ██████╗ ██╗ ██████╗████████╗
██║   ██║██╔════╝██╔══██╗██╔══██╗██║██╔════╝╚══██╔══╝
██║   ██║█████╗  ██████╔╝██║  ██║██║██║        ██║
╚██╗ ██╔╝██╔══╝  ██╔══██╗██║  ██║██║██║        ██║
 ╚████╔╝ ███████╗██║  ██║██████╔╝██║╚██████╗   ██║
  ╚═══╝  ╚══════╝╚═╝  ╚═╝╚═════╝ ╚═╝ ╚═════╝   ╚═╝
`
