package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContentChunk is a denormalized chunk for vector search. Keeping a separate
// collection enables efficient $vectorSearch with pre-filtering on the
// denormalized document fields (language, classification).
type ContentChunk struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID     primitive.ObjectID `bson:"document_id" json:"document_id"`
	SectionID      string             `bson:"section_id,omitempty" json:"section_id,omitempty"`
	ChunkID        string             `bson:"chunk_id" json:"chunk_id"`
	ChunkIndex     int                `bson:"chunk_index" json:"chunk_index"`
	Text           string             `bson:"text" json:"text"`
	Vector         []float32          `bson:"vector,omitempty" json:"vector,omitempty"`
	CharCount      int                `bson:"char_count" json:"char_count"`
	WordCount      int                `bson:"word_count" json:"word_count"`
	Language       string             `bson:"language,omitempty" json:"language,omitempty"`
	Classification string             `bson:"classification,omitempty" json:"classification,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// HasVector reports whether the chunk's embedding has been computed.
func (c *ContentChunk) HasVector() bool {
	return len(c.Vector) > 0
}

// SearchResult is a per-document hit returned by the retrieval service.
type SearchResult struct {
	DocumentID     string  `json:"document_id"`
	Title          string  `json:"title,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
	MatchingChunks int     `json:"matching_chunks"`
}
