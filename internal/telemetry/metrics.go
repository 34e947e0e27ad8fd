package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	EmbeddingRequests   metric.Int64Counter
	EmbeddingTokens     metric.Int64Counter
	SearchDuration      metric.Float64Histogram
	BatchDuration       metric.Float64Histogram
	CircuitBreakerState metric.Int64Counter
	CacheLookups        metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("govjobs-semantic-platform")

	embeddingRequests, err := meter.Int64Counter(
		"embeddings.requests.total",
		metric.WithDescription("Total embedding generation requests"),
	)
	if err != nil {
		return nil, err
	}

	embeddingTokens, err := meter.Int64Counter(
		"embeddings.tokens.used",
		metric.WithDescription("Total provider tokens consumed by embedding calls"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.duration",
		metric.WithDescription("Semantic search duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	batchDuration, err := meter.Float64Histogram(
		"batch.embedding.duration",
		metric.WithDescription("Batch embedding run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"embeddings.cache.lookups",
		metric.WithDescription("Embedding cache lookups by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		EmbeddingRequests:   embeddingRequests,
		EmbeddingTokens:     embeddingTokens,
		SearchDuration:      searchDuration,
		BatchDuration:       batchDuration,
		CircuitBreakerState: circuitBreakerState,
		CacheLookups:        cacheLookups,
	}, nil
}

// RecordEmbeddingRequest records an embedding request by outcome
// ("ok", "unavailable", "invalid", "empty").
func (m *Metrics) RecordEmbeddingRequest(outcome string) {
	if m == nil {
		return
	}
	m.EmbeddingRequests.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// RecordTokensUsed records provider token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	if m == nil {
		return
	}
	m.EmbeddingTokens.Add(context.Background(), tokens, metric.WithAttributes(
		attribute.String("embedding.model", model),
	))
}

// RecordSearch records a search by mode ("semantic" or "lexical")
func (m *Metrics) RecordSearch(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.SearchDuration.Record(context.Background(), seconds, metric.WithAttributes(
		attribute.String("search.mode", mode),
	))
}

// RecordBatchRun records a batch embedding run
func (m *Metrics) RecordBatchRun(seconds float64, dryRun bool) {
	if m == nil {
		return
	}
	m.BatchDuration.Record(context.Background(), seconds, metric.WithAttributes(
		attribute.Bool("batch.dry_run", dryRun),
	))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(name, from, to string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("breaker.name", name),
		attribute.String("breaker.from", from),
		attribute.String("breaker.to", to),
	))
}

// RecordCacheLookup records an embedding cache lookup
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	m.CacheLookups.Add(context.Background(), 1, metric.WithAttributes(
		attribute.Bool("cache.hit", hit),
	))
}
