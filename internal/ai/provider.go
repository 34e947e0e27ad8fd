// Package ai wraps the external embedding provider.
package ai

import (
	"context"
	"fmt"
	"strings"

	"govjobs-semantic-platform/internal/config"
)

// Provider generates fixed-width embeddings for text. Implementations report
// raw provider errors; absorbing them into null results is the embedding
// service's job.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Model() string
}

// NewProvider builds the embedding provider selected by EMBEDDINGS_PROVIDER.
// Only Google is implemented today; the switch is where additional backends
// plug in.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch strings.ToLower(cfg.EmbeddingsProvider) {
	case "", "google":
		return NewGeminiProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported embeddings provider %q", cfg.EmbeddingsProvider)
	}
}

// tokensPerWord is a conservative multiplier for estimating provider token
// counts from whitespace-delimited words.
const tokensPerWord = 1.3

// EstimateTokens estimates the provider token count for text.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	estimate := int(float64(words) * tokensPerWord)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

// WordBudget converts a token budget back into a word count for truncation.
func WordBudget(maxTokens int) int {
	if maxTokens <= 0 {
		return 0
	}
	return int(float64(maxTokens) / tokensPerWord)
}
