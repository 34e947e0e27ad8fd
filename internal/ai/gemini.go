package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"govjobs-semantic-platform/internal/config"
)

// GeminiProvider generates embeddings via the Google Generative AI API.
type GeminiProvider struct {
	client       *genai.Client
	model        string
	dimensions   int
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
}

// TokenCounter tracks rolling per-minute consumption against provider limits.
type TokenCounter struct {
	mu              sync.Mutex
	rpm             int
	tpm             int
	minuteTokens    int
	minuteRequests  int
	lastMinuteReset time.Time
}

func NewTokenCounter(rpm, tpm int) *TokenCounter {
	return &TokenCounter{rpm: rpm, tpm: tpm}
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if tc.rpm > 0 && tc.minuteRequests+requests > tc.rpm {
		return false
	}
	if tc.tpm > 0 && tc.minuteTokens+tokens > tc.tpm {
		return false
	}
	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
}

// NewGeminiProvider creates a provider client with rate limiting configured
// from the service tier.
func NewGeminiProvider(cfg *config.Config) (*GeminiProvider, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY for embeddings")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	// RPM limit with some buffer
	burst := cfg.EmbedRequestsPerMin / 10
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(float64(cfg.EmbedRequestsPerMin)*0.9/60.0), burst)

	return &GeminiProvider{
		client:       client,
		model:        cfg.GoogleEmbeddingsModel,
		dimensions:   cfg.VectorDimensions,
		rateLimiter:  rateLimiter,
		tokenCounter: NewTokenCounter(cfg.EmbedRequestsPerMin, cfg.EmbedTokensPerMin),
	}, nil
}

// Embed generates an embedding for text. Provider errors, rate-limit
// rejections, and empty responses are returned as errors.
func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("gemini-embeddings")
	ctx, span := tracer.Start(ctx, "gemini.embed_content")
	defer span.End()

	estimatedTokens := EstimateTokens(text)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.String("gemini.model", p.model),
	)

	// Check token limits BEFORE making the request
	if !p.tokenCounter.CanConsume(estimatedTokens, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, errors.New("rate limit exceeded: wait before retry")
	}

	// Rate limiter wait
	if err := p.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, err
	}

	em := p.client.EmbeddingModel(p.model)
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		span.SetAttributes(
			attribute.Bool("gemini.error", true),
			attribute.String("gemini.error_message", err.Error()),
		)
		return nil, err
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, fmt.Errorf("no embedding returned for model %s", p.model)
	}

	p.tokenCounter.RecordUsage(estimatedTokens, 1)
	span.SetAttributes(attribute.Int("gemini.vector_width", len(resp.Embedding.Values)))

	return resp.Embedding.Values, nil
}

func (p *GeminiProvider) Dimensions() int { return p.dimensions }

func (p *GeminiProvider) Model() string { return p.model }

// Close the underlying client.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
