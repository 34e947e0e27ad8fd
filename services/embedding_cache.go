package services

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"govjobs-semantic-platform/internal/logger"
	"govjobs-semantic-platform/models"
	"govjobs-semantic-platform/utils"
)

// VectorCache caches embeddings keyed by text content. A nil implementation
// is a valid no-op; callers treat misses and cache errors identically.
type VectorCache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool)
	Set(ctx context.Context, model, text string, vector []float32)
}

// EmbeddingCache is the Redis-backed VectorCache. Vectors are stored as raw
// little-endian float32 bytes; re-embedding identical text is far more
// expensive than a Redis round trip.
type EmbeddingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewEmbeddingCache(rdb *redis.Client, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{rdb: rdb, ttl: ttl}
}

func embeddingKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + ":" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func (c *EmbeddingCache) Get(ctx context.Context, model, text string) ([]float32, bool) {
	raw, err := c.rdb.Get(ctx, embeddingKey(model, text)).Bytes()
	if err != nil {
		return nil, false
	}
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec, true
}

func (c *EmbeddingCache) Set(ctx context.Context, model, text string, vector []float32) {
	if len(vector) == 0 {
		return
	}
	raw := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	if err := c.rdb.Set(ctx, embeddingKey(model, text), raw, c.ttl).Err(); err != nil {
		logger.Debug("Embedding cache write failed", "error", err)
	}
}

// ComparisonResultCache is a short-TTL Redis cache in front of the Mongo
// comparison collection. Payloads are gzip-compressed JSON; comparison
// breakdowns for large documents run to tens of kilobytes.
type ComparisonResultCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewComparisonResultCache(rdb *redis.Client, ttl time.Duration) *ComparisonResultCache {
	return &ComparisonResultCache{rdb: rdb, ttl: ttl}
}

func comparisonKey(jobA, jobB, kind string) string {
	return "cmp:" + jobA + ":" + jobB + ":" + kind
}

func (c *ComparisonResultCache) Get(ctx context.Context, jobA, jobB, kind string) (*models.ComparisonResult, bool) {
	raw, err := c.rdb.Get(ctx, comparisonKey(jobA, jobB, kind)).Bytes()
	if err != nil {
		return nil, false
	}
	data, err := utils.DecompressData(raw, utils.CompressionGzip)
	if err != nil {
		return nil, false
	}
	var result models.ComparisonResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (c *ComparisonResultCache) Set(ctx context.Context, result *models.ComparisonResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	compressed, err := utils.CompressData(data, utils.CompressionGzip)
	if err != nil {
		return
	}
	key := comparisonKey(result.JobAID.Hex(), result.JobBID.Hex(), result.Kind)
	if err := c.rdb.Set(ctx, key, compressed, c.ttl).Err(); err != nil {
		logger.Debug("Comparison cache write failed", "error", err)
	}
}

// Invalidate drops cached comparisons touching the given document, called
// after forced regeneration changes its chunk set.
func (c *ComparisonResultCache) Invalidate(ctx context.Context, documentID string) {
	iter := c.rdb.Scan(ctx, 0, "cmp:*"+documentID+"*", 100).Iterator()
	for iter.Next(ctx) {
		c.rdb.Del(ctx, iter.Val())
	}
}
