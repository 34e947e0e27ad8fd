package services

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"govjobs-semantic-platform/internal/logger"
	"govjobs-semantic-platform/internal/telemetry"
	"govjobs-semantic-platform/models"
	"govjobs-semantic-platform/utils"
)

// SearchFilters narrow a search before ranking.
type SearchFilters struct {
	Language       string
	Classification string
}

// candidateFactor widens the chunk-level query so that grouping by document
// still yields topK distinct documents.
const candidateFactor = 4

// RetrievalService orchestrates semantic search: embed the query, find the
// nearest chunks, group by owning document, rank. When the query embedding is
// unavailable the search degrades to the lexical index rather than failing.
type RetrievalService struct {
	embedder *EmbeddingService
	chunks   ChunkStore
	metrics  *telemetry.Metrics
}

func NewRetrievalService(embedder *EmbeddingService, chunks ChunkStore, metrics *telemetry.Metrics) *RetrievalService {
	return &RetrievalService{embedder: embedder, chunks: chunks, metrics: metrics}
}

// Search returns up to topK documents ranked by descending relevance, ties
// broken by document id for determinism. A document's relevance is the best
// similarity among its matching chunks.
func (s *RetrievalService) Search(ctx context.Context, query string, topK int, filters SearchFilters) ([]models.SearchResult, error) {
	if topK <= 0 {
		return nil, utils.NewValidationError("top_k", "must be a positive integer")
	}

	tracer := otel.Tracer("retrieval-service")
	ctx, span := tracer.Start(ctx, "retrieval.search")
	defer span.End()
	started := time.Now()

	chunkFilter := ChunkFilter{
		Language:       filters.Language,
		Classification: filters.Classification,
	}

	mode := "semantic"
	var matches []ChunkMatch
	var err error

	vector := s.embedder.Generate(ctx, query)
	if vector == nil {
		// Semantic search degrades gracefully; the user-facing query must
		// not hard-fail because the embedding dependency is down.
		mode = "lexical"
		logger.Warn("Query embedding unavailable, using lexical fallback", "query_len", len(query))
		matches, err = s.chunks.KeywordChunks(ctx, query, topK*candidateFactor, chunkFilter)
	} else {
		matches, err = s.chunks.NearestChunks(ctx, vector, topK*candidateFactor, chunkFilter)
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("search.mode", mode),
		attribute.Int("search.chunk_matches", len(matches)),
	)
	s.metrics.RecordSearch(mode, time.Since(started).Seconds())

	return rankByDocument(matches, topK), nil
}

// rankByDocument groups chunk matches by owning document and scores each
// document with the maximum similarity of its chunks.
func rankByDocument(matches []ChunkMatch, topK int) []models.SearchResult {
	byDoc := make(map[string]*models.SearchResult)
	for _, m := range matches {
		id := m.Chunk.DocumentID.Hex()
		entry, ok := byDoc[id]
		if !ok {
			byDoc[id] = &models.SearchResult{
				DocumentID:     id,
				RelevanceScore: m.Similarity,
				MatchingChunks: 1,
			}
			continue
		}
		entry.MatchingChunks++
		if m.Similarity > entry.RelevanceScore {
			entry.RelevanceScore = m.Similarity
		}
	}

	results := make([]models.SearchResult, 0, len(byDoc))
	for _, entry := range byDoc {
		results = append(results, *entry)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
