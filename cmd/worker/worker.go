package main

import (
	"context"
	"io"
	"log"

	"github.com/hibiken/asynq"

	"govjobs-semantic-platform/internal/ai"
	"govjobs-semantic-platform/internal/config"
	"govjobs-semantic-platform/internal/logger"
	"govjobs-semantic-platform/internal/queue"
	"govjobs-semantic-platform/internal/telemetry"
	"govjobs-semantic-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.DBName)

	// Redis for caches and the task broker
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	provider, err := ai.NewProvider(cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedding provider:", err)
	}
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}

	platform, err := services.NewPlatform(cfg, db, rdb, provider, metrics)
	if err != nil {
		log.Fatal("Failed to wire services:", err)
	}

	if err := platform.Chunks.EnsureIndexes(context.Background(), cfg.SearchIndexName); err != nil {
		log.Fatal("Failed to ensure chunk indexes:", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.BatchConcurrency * 2,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(platform.Batch)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskEmbedDocument, processor.HandleEmbedDocument)
	mux.HandleFunc(queue.TaskBackfillCorpus, processor.HandleBackfill)

	logger.Info("starting embedding worker",
		"concurrency", cfg.BatchConcurrency*2,
		"redis", redisOpt.Addr,
	)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
