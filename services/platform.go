package services

import (
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"govjobs-semantic-platform/internal/ai"
	"govjobs-semantic-platform/internal/config"
	"govjobs-semantic-platform/internal/resilience"
	"govjobs-semantic-platform/internal/telemetry"
)

// Platform is the fully wired service graph. Binaries build one Platform from
// configuration and pick the services they serve; construction is the single
// place configuration meets the service layer.
type Platform struct {
	Documents   *MongoDocumentStore
	Chunks      *MongoChunkStore
	Chunker     *ChunkingService
	Breaker     *resilience.Breaker
	Embedder    *EmbeddingService
	Retrieval   *RetrievalService
	Comparisons *ComparisonService
	Translation *TranslationMemoryService
	Batch       *BatchOrchestrator
}

// NewPlatform wires every service from cfg. The transition history
// collaborator has no backing store yet, so career-path scoring runs with the
// neutral default rate.
func NewPlatform(cfg *config.Config, db *mongo.Database, rdb *redis.Client, provider ai.Provider, metrics *telemetry.Metrics) (*Platform, error) {
	chunker, err := NewChunkingService(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	breaker := resilience.NewBreaker(resilience.Settings{
		Name:             "embeddings",
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		RecoveryTimeout:  cfg.BreakerRecoveryTimeout,
		CallTimeout:      cfg.BreakerCallTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			metrics.RecordCircuitBreakerState(name, from.String(), to.String())
		},
	})

	embedCache := NewEmbeddingCache(rdb, cfg.CacheTTL)
	embedder := NewEmbeddingService(provider, breaker, embedCache, metrics, cfg.MaxInputTokens)

	docStore := NewMongoDocumentStore(db)
	chunkStore := NewMongoChunkStore(db, cfg.VectorDimensions, cfg.VectorSearchEnabled, cfg.VectorIndexName)
	resultCache := NewComparisonResultCache(rdb, cfg.CacheTTL)

	weights := CareerPathWeights{
		SkillGap:       cfg.SkillGapWeight,
		Classification: cfg.ClassificationWeight,
		Transition:     cfg.TransitionWeight,
	}
	comparisons := NewComparisonService(
		docStore, chunkStore, NewMongoComparisonStore(db), resultCache, nil,
		ParseAggregationStrategy(cfg.AggregationStrategy), weights, cfg.MaxBatchCompare,
	)

	translation := NewTranslationMemoryService(embedder, NewMongoTranslationStore(db), cfg.SimilarityThresholdTM)

	batch := NewBatchOrchestrator(
		docStore, chunkStore, chunker, embedder, resultCache, metrics,
		cfg.BatchConcurrency, cfg.BatchDocsPerSec,
	)

	return &Platform{
		Documents:   docStore,
		Chunks:      chunkStore,
		Chunker:     chunker,
		Breaker:     breaker,
		Embedder:    embedder,
		Retrieval:   NewRetrievalService(embedder, chunkStore, metrics),
		Comparisons: comparisons,
		Translation: translation,
		Batch:       batch,
	}, nil
}
