package services

import (
	"math"

	"govjobs-semantic-platform/utils"
)

// AggregationStrategy selects how chunk-level similarities combine into a
// document-level score.
type AggregationStrategy string

const (
	AggregateBestMatch AggregationStrategy = "best_match"
	AggregateAverage   AggregationStrategy = "average"
)

// ParseAggregationStrategy maps a config string to a strategy, defaulting to
// best-match for unknown values.
func ParseAggregationStrategy(s string) AggregationStrategy {
	if AggregationStrategy(s) == AggregateAverage {
		return AggregateAverage
	}
	return AggregateBestMatch
}

// CosineSimilarity computes dot(a,b) / (||a|| * ||b||) in [-1, 1].
// Vectors of different lengths are a contract violation and return a
// DimensionMismatchError. A zero-magnitude vector yields exactly 0.0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &utils.DimensionMismatchError{Want: len(a), Got: len(b)}
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// DocumentSimilarity aggregates pairwise chunk similarities between two
// documents' chunk sets into one score. Best-match takes the maximum pairwise
// similarity; average takes the mean over all pairs. Both sides must be
// non-empty for a meaningful score; an empty side yields 0.0.
func DocumentSimilarity(a, b [][]float32, strategy AggregationStrategy) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0.0, nil
	}

	var best, sum float64
	pairs := 0
	for _, va := range a {
		for _, vb := range b {
			sim, err := CosineSimilarity(va, vb)
			if err != nil {
				return 0, err
			}
			if pairs == 0 || sim > best {
				best = sim
			}
			sum += sim
			pairs++
		}
	}

	if strategy == AggregateAverage {
		return sum / float64(pairs), nil
	}
	return best, nil
}
