package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"govjobs-semantic-platform/internal/logger"
	"govjobs-semantic-platform/models"
	"govjobs-semantic-platform/utils"
)

// ChunkMatch pairs a stored chunk with its similarity to a query vector.
type ChunkMatch struct {
	Chunk      models.ContentChunk
	Similarity float64
}

// ChunkFilter narrows similarity queries at the store layer, before ranking,
// so filtering never under-returns from an already-truncated top-k.
type ChunkFilter struct {
	DocumentIDs    []primitive.ObjectID
	Language       string
	Classification string
}

// ChunkStore persists chunks and answers nearest-neighbor queries. Chunks
// without embeddings are filtered out of similarity queries transparently.
type ChunkStore interface {
	ReplaceDocumentChunks(ctx context.Context, documentID primitive.ObjectID, chunks []models.ContentChunk) error
	DeleteDocumentChunks(ctx context.Context, documentID primitive.ObjectID) error
	DocumentChunks(ctx context.Context, documentID primitive.ObjectID) ([]models.ContentChunk, error)
	ChunksMissingEmbeddings(ctx context.Context, limit int64) ([]models.ContentChunk, error)
	NearestChunks(ctx context.Context, vector []float32, k int, filter ChunkFilter) ([]ChunkMatch, error)
	KeywordChunks(ctx context.Context, query string, k int, filter ChunkFilter) ([]ChunkMatch, error)
}

// MongoChunkStore stores chunks in the job_chunks collection. Nearest-neighbor
// queries use Atlas $vectorSearch when enabled and fall back to an exact
// cosine scan otherwise, which is acceptable at small corpus sizes.
type MongoChunkStore struct {
	col                 *mongo.Collection
	dimensions          int
	vectorSearchEnabled bool
	vectorIndexName     string

	// Per-document regeneration is the unit of mutual exclusion: concurrent
	// regeneration of the same document is serialized, different documents
	// proceed independently.
	locks sync.Map // document id hex -> *sync.Mutex
}

func NewMongoChunkStore(db *mongo.Database, dimensions int, vectorSearchEnabled bool, vectorIndexName string) *MongoChunkStore {
	return &MongoChunkStore{
		col:                 db.Collection("job_chunks"),
		dimensions:          dimensions,
		vectorSearchEnabled: vectorSearchEnabled,
		vectorIndexName:     vectorIndexName,
	}
}

// EnsureIndexes creates the indexes similarity and keyword queries depend
// on. The text index backs the lexical fallback and carries the configured
// search index name; $vectorSearch indexes are managed in Atlas, not here.
func (s *MongoChunkStore) EnsureIndexes(ctx context.Context, searchIndexName string) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "chunk_index", Value: 1}}},
		{
			Keys:    bson.D{{Key: "text", Value: "text"}},
			Options: options.Index().SetName(searchIndexName),
		},
	})
	return err
}

func (s *MongoChunkStore) lockFor(documentID primitive.ObjectID) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(documentID.Hex(), &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ReplaceDocumentChunks removes and recreates a document's chunk set as a
// unit. Writers for the same document are serialized; the insert is a single
// ordered bulk write so readers never observe an interleaved partial set.
func (s *MongoChunkStore) ReplaceDocumentChunks(ctx context.Context, documentID primitive.ObjectID, chunks []models.ContentChunk) error {
	for i := range chunks {
		if chunks[i].HasVector() && len(chunks[i].Vector) != s.dimensions {
			return &utils.CorruptionError{
				Subject: "chunk vector",
				Detail:  fmt.Sprintf("document %s chunk %d has width %d, store expects %d", documentID.Hex(), chunks[i].ChunkIndex, len(chunks[i].Vector), s.dimensions),
			}
		}
	}

	touchTimestamps(chunks)

	mu := s.lockFor(documentID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.col.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return fmt.Errorf("failed to clear chunks for document %s: %w", documentID.Hex(), err)
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]interface{}, len(chunks))
	for i := range chunks {
		chunks[i].DocumentID = documentID
		docs[i] = chunks[i]
	}
	if _, err := s.col.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert chunks for document %s: %w", documentID.Hex(), err)
	}
	return nil
}

func (s *MongoChunkStore) DeleteDocumentChunks(ctx context.Context, documentID primitive.ObjectID) error {
	mu := s.lockFor(documentID)
	mu.Lock()
	defer mu.Unlock()

	_, err := s.col.DeleteMany(ctx, bson.M{"document_id": documentID})
	return err
}

func (s *MongoChunkStore) DocumentChunks(ctx context.Context, documentID primitive.ObjectID) ([]models.ContentChunk, error) {
	cursor, err := s.col.Find(ctx, bson.M{"document_id": documentID},
		options.Find().SetSort(bson.D{{Key: "chunk_index", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.ContentChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// ChunksMissingEmbeddings returns chunks awaiting backfill, oldest first.
func (s *MongoChunkStore) ChunksMissingEmbeddings(ctx context.Context, limit int64) ([]models.ContentChunk, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.col.Find(ctx, bson.M{
		"$or": bson.A{
			bson.M{"vector": bson.M{"$exists": false}},
			bson.M{"vector": bson.M{"$size": 0}},
		},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.ContentChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (f ChunkFilter) toBSON() bson.M {
	filter := bson.M{}
	if len(f.DocumentIDs) > 0 {
		filter["document_id"] = bson.M{"$in": f.DocumentIDs}
	}
	if f.Language != "" {
		filter["language"] = f.Language
	}
	if f.Classification != "" {
		filter["classification"] = f.Classification
	}
	return filter
}

// NearestChunks returns the k most similar embedded chunks, descending by
// cosine similarity.
func (s *MongoChunkStore) NearestChunks(ctx context.Context, vector []float32, k int, filter ChunkFilter) ([]ChunkMatch, error) {
	if len(vector) != s.dimensions {
		return nil, &utils.DimensionMismatchError{Want: s.dimensions, Got: len(vector)}
	}
	if k <= 0 {
		return nil, utils.NewValidationError("k", "must be positive")
	}

	if s.vectorSearchEnabled {
		matches, err := s.vectorSearch(ctx, vector, k, filter)
		if err == nil {
			return matches, nil
		}
		logger.Warn("$vectorSearch failed, falling back to exact scan", "error", err)
	}
	return s.exactScan(ctx, vector, k, filter)
}

func (s *MongoChunkStore) vectorSearch(ctx context.Context, vector []float32, k int, filter ChunkFilter) ([]ChunkMatch, error) {
	search := bson.M{
		"index":         s.vectorIndexName,
		"path":          "vector",
		"queryVector":   vector,
		"numCandidates": k * 10,
		"limit":         k,
	}
	if pre := filter.toBSON(); len(pre) > 0 {
		search["filter"] = pre
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$vectorSearch", Value: search}},
		bson.D{{Key: "$addFields", Value: bson.M{
			"search_score": bson.M{"$meta": "vectorSearchScore"},
		}}},
	}
	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		models.ContentChunk `bson:",inline"`
		SearchScore         float64 `bson:"search_score"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	matches := make([]ChunkMatch, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, ChunkMatch{Chunk: row.ContentChunk, Similarity: row.SearchScore})
	}
	return matches, nil
}

// storedWidthError reports corruption when a stored vector's width does not
// match the width the store was configured for.
func (s *MongoChunkStore) storedWidthError(chunk *models.ContentChunk) error {
	if len(chunk.Vector) == s.dimensions {
		return nil
	}
	return &utils.CorruptionError{
		Subject: "chunk vector",
		Detail:  fmt.Sprintf("chunk %s has width %d, store expects %d", chunk.ChunkID, len(chunk.Vector), s.dimensions),
	}
}

// exactScan computes cosine similarity against every embedded chunk matching
// the filter. Rows whose stored vector width does not match the model's output
// width are corruption, not candidates.
func (s *MongoChunkStore) exactScan(ctx context.Context, vector []float32, k int, filter ChunkFilter) ([]ChunkMatch, error) {
	query := filter.toBSON()
	query["vector"] = bson.M{"$exists": true, "$ne": bson.A{}}

	cursor, err := s.col.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var matches []ChunkMatch
	for cursor.Next(ctx) {
		var chunk models.ContentChunk
		if err := cursor.Decode(&chunk); err != nil {
			return nil, err
		}
		if !chunk.HasVector() {
			continue
		}
		if err := s.storedWidthError(&chunk); err != nil {
			return nil, err
		}
		sim, err := CosineSimilarity(vector, chunk.Vector)
		if err != nil {
			return nil, err
		}
		matches = append(matches, ChunkMatch{Chunk: chunk, Similarity: sim})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Chunk.ChunkID < matches[j].Chunk.ChunkID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// KeywordChunks is the lexical fallback used when no query embedding is
// available. It relies on the text index over chunk text; scores are squashed
// into [0, 1) so they rank but are not comparable to cosine scores.
func (s *MongoChunkStore) KeywordChunks(ctx context.Context, query string, k int, filter ChunkFilter) ([]ChunkMatch, error) {
	if k <= 0 {
		return nil, utils.NewValidationError("k", "must be positive")
	}

	q := filter.toBSON()
	q["$text"] = bson.M{"$search": query}

	opts := options.Find().
		SetProjection(bson.M{"text_score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.M{"text_score": bson.M{"$meta": "textScore"}}).
		SetLimit(int64(k))

	cursor, err := s.col.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var matches []ChunkMatch
	for cursor.Next(ctx) {
		var row struct {
			models.ContentChunk `bson:",inline"`
			TextScore           float64 `bson:"text_score"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		matches = append(matches, ChunkMatch{
			Chunk:      row.ContentChunk,
			Similarity: row.TextScore / (row.TextScore + 1),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

// touchTimestamps sets CreatedAt where the chunker left it unset, keeping
// backfill ordering stable.
func touchTimestamps(chunks []models.ContentChunk) {
	now := time.Now()
	for i := range chunks {
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = now
		}
	}
}
