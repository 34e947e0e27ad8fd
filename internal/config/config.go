package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Env      string

	// Redis (cache + asynq broker)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Embedding provider
	EmbeddingsProvider    string // "google" (default)
	GeminiAPIKey          string
	GoogleEmbeddingsModel string // e.g. "gemini-embedding-001"
	VectorDimensions      int
	MaxInputTokens        int
	EmbedRequestsPerMin   int
	EmbedTokensPerMin     int

	// MongoDB Atlas vector/text search
	VectorSearchEnabled bool
	VectorIndexName     string
	SearchIndexName     string

	// Chunking (word windows)
	ChunkSize    int
	ChunkOverlap int

	// Circuit breaker guarding the embedding dependency
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerRecoveryTimeout  time.Duration
	BreakerCallTimeout      time.Duration

	// Embedding cache
	CacheTTL time.Duration

	// Batch orchestration
	BatchConcurrency int
	BatchDocsPerSec  float64
	BackfillCron     string

	// Comparison / career-path policy
	MaxBatchCompare       int
	AggregationStrategy   string // "best_match" or "average"
	SkillGapWeight        float64
	ClassificationWeight  float64
	TransitionWeight      float64
	SimilarityThresholdTM float64

	// Telemetry
	OTLPEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/govjobs"),
		DBName:   getEnv("DB_NAME", "govjobs"),
		Env:      getEnv("APP_ENV", "debug"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "gemini-embedding-001"),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 1536),
		MaxInputTokens:        getEnvInt("EMBED_MAX_INPUT_TOKENS", 2048),
		EmbedRequestsPerMin:   getEnvInt("EMBED_RPM", 100),
		EmbedTokensPerMin:     getEnvInt("EMBED_TPM", 250000),

		VectorSearchEnabled: getEnvBool("MONGODB_VECTOR_ENABLED", false),
		VectorIndexName:     getEnv("MONGODB_VECTOR_INDEX", "job_chunks_vector"),
		SearchIndexName:     getEnv("MONGODB_SEARCH_INDEX", "job_chunks_text"),

		ChunkSize:    getEnvInt("CHUNK_SIZE_WORDS", 250),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP_WORDS", 50),

		BreakerFailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerSuccessThreshold: getEnvInt("BREAKER_SUCCESS_THRESHOLD", 1),
		BreakerRecoveryTimeout:  time.Duration(getEnvInt("BREAKER_RECOVERY_SECONDS", 30)) * time.Second,
		BreakerCallTimeout:      time.Duration(getEnvInt("BREAKER_CALL_TIMEOUT_SECONDS", 15)) * time.Second,

		CacheTTL: time.Duration(getEnvInt("EMBED_CACHE_TTL_SECONDS", 86400)) * time.Second,

		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 4),
		BatchDocsPerSec:  getEnvFloat64("BATCH_DOCS_PER_SEC", 2.0),
		BackfillCron:     getEnv("BACKFILL_CRON", "0 2 * * *"),

		MaxBatchCompare:       getEnvInt("MAX_BATCH_COMPARE", 50),
		AggregationStrategy:   getEnv("SIMILARITY_AGGREGATION", "best_match"),
		SkillGapWeight:        getEnvFloat64("CAREER_SKILL_GAP_WEIGHT", 0.5),
		ClassificationWeight:  getEnvFloat64("CAREER_CLASSIFICATION_WEIGHT", 0.3),
		TransitionWeight:      getEnvFloat64("CAREER_TRANSITION_WEIGHT", 0.2),
		SimilarityThresholdTM: getEnvFloat64("TM_DEFAULT_THRESHOLD", 0.75),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP_WORDS must be smaller than CHUNK_SIZE_WORDS")
	}

	if cfg.VectorDimensions <= 0 {
		return nil, fmt.Errorf("VECTOR_DIM must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
