package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"govjobs-semantic-platform/internal/config"
	"govjobs-semantic-platform/internal/logger"
	"govjobs-semantic-platform/internal/queue"
	"govjobs-semantic-platform/internal/schedule"
	"govjobs-semantic-platform/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("govjobs-semantic-platform", cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}

	// Connect to MongoDB (creates collection indexes)
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Asynq client for enqueuing scheduled work
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer asynqClient.Close()

	// Nightly backfill: embed any documents still missing vectors
	scheduler := schedule.NewScheduler()
	err = scheduler.ScheduleCron("embedding-backfill", cfg.BackfillCron, func() error {
		task, err := queue.NewBackfillTask(0, false)
		if err != nil {
			return err
		}
		info, err := asynqClient.Enqueue(task)
		if err != nil {
			logger.Error("failed to enqueue backfill", "error", err)
			return err
		}
		logger.Info("backfill enqueued", "task_id", info.ID, "queue", info.Queue)
		return nil
	})
	if err != nil {
		log.Fatal("Failed to schedule backfill:", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("scheduler started",
		"backfill_cron", cfg.BackfillCron,
		"db", cfg.DBName,
		"vector_search", cfg.VectorSearchEnabled,
	)

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
}
