package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"govjobs-semantic-platform/internal/ai"
	"govjobs-semantic-platform/internal/logger"
	"govjobs-semantic-platform/internal/resilience"
	"govjobs-semantic-platform/internal/telemetry"
)

// truncationMarker is appended to text that was cut to fit the provider's
// input budget.
const truncationMarker = " [truncated]"

// EmbeddingService converts text into fixed-width vectors. It owns input
// truncation, response validation, and the absorb-to-nil policy for provider
// failures: a nil return means "embedding unavailable for this input, skip or
// retry later", never a fatal condition. Genuine faults (contract violations)
// stay inside; transient dependency trouble is handled by the breaker.
type EmbeddingService struct {
	provider       ai.Provider
	breaker        *resilience.Breaker
	cache          VectorCache
	metrics        *telemetry.Metrics
	maxInputTokens int
}

// NewEmbeddingService wires the provider behind the circuit breaker. cache
// and metrics may be nil.
func NewEmbeddingService(provider ai.Provider, breaker *resilience.Breaker, cache VectorCache, metrics *telemetry.Metrics, maxInputTokens int) *EmbeddingService {
	if maxInputTokens <= 0 {
		maxInputTokens = 2048
	}
	return &EmbeddingService{
		provider:       provider,
		breaker:        breaker,
		cache:          cache,
		metrics:        metrics,
		maxInputTokens: maxInputTokens,
	}
}

// Dimensions is the model's fixed output width.
func (s *EmbeddingService) Dimensions() int { return s.provider.Dimensions() }

// BreakerMetrics exposes the embedding dependency's breaker snapshot.
func (s *EmbeddingService) BreakerMetrics() resilience.Metrics {
	if s.breaker == nil {
		return resilience.Metrics{}
	}
	return s.breaker.Metrics()
}

// truncate cuts text to the provider's token budget, appending a marker when
// anything was dropped.
func (s *EmbeddingService) truncate(text string) string {
	if ai.EstimateTokens(text) <= s.maxInputTokens {
		return text
	}
	words := strings.Fields(text)
	budget := ai.WordBudget(s.maxInputTokens)
	if budget >= len(words) {
		return text
	}
	return strings.Join(words[:budget], " ") + truncationMarker
}

// Generate returns the embedding for text, or nil when no embedding is
// available: empty input, provider failure, breaker rejection, or an invalid
// response. Empty/whitespace input never reaches the provider.
func (s *EmbeddingService) Generate(ctx context.Context, text string) []float32 {
	if strings.TrimSpace(text) == "" {
		s.metrics.RecordEmbeddingRequest("empty")
		return nil
	}

	tracer := otel.Tracer("embedding-service")
	ctx, span := tracer.Start(ctx, "embeddings.generate")
	defer span.End()

	text = s.truncate(text)

	if s.cache != nil {
		if vec, ok := s.cache.Get(ctx, s.provider.Model(), text); ok {
			s.metrics.RecordCacheLookup(true)
			span.SetAttributes(attribute.Bool("embeddings.cache_hit", true))
			return vec
		}
		s.metrics.RecordCacheLookup(false)
	}

	var result interface{}
	var err error
	call := func(ctx context.Context) (interface{}, error) {
		return s.provider.Embed(ctx, text)
	}
	if s.breaker != nil {
		result, err = s.breaker.Execute(ctx, call)
	} else {
		result, err = call(ctx)
	}
	if err != nil {
		if resilience.IsOpen(err) {
			span.SetAttributes(attribute.Bool("embeddings.circuit_open", true))
			logger.Warn("Embedding dependency unavailable, circuit open", "error", err)
		} else {
			logger.Warn("Embedding generation failed", "error", err)
		}
		s.metrics.RecordEmbeddingRequest("unavailable")
		return nil
	}

	vec, ok := result.([]float32)
	if !ok || len(vec) == 0 || len(vec) != s.provider.Dimensions() {
		logger.Warn("Discarding invalid embedding",
			"got_width", len(vec), "want_width", s.provider.Dimensions())
		s.metrics.RecordEmbeddingRequest("invalid")
		return nil
	}

	s.metrics.RecordEmbeddingRequest("ok")
	s.metrics.RecordTokensUsed(int64(ai.EstimateTokens(text)), s.provider.Model())

	if s.cache != nil {
		s.cache.Set(ctx, s.provider.Model(), text, vec)
	}
	return vec
}

// GenerateMany embeds each text in order. Failures are isolated per item: the
// result slice always has the same length and ordering as the input, with nil
// entries where no embedding is available.
func (s *EmbeddingService) GenerateMany(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if ctx.Err() != nil {
			break
		}
		out[i] = s.Generate(ctx, text)
	}
	return out
}
