package services

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"govjobs-semantic-platform/models"
	"govjobs-semantic-platform/utils"
)

func seedChunk(store *memChunkStore, docID primitive.ObjectID, text string, vector []float32) {
	chunks := store.byDoc[docID]
	chunks = append(chunks, models.ContentChunk{
		DocumentID: docID,
		ChunkID:    primitive.NewObjectID().Hex(),
		ChunkIndex: len(chunks),
		Text:       text,
		Vector:     vector,
	})
	store.byDoc[docID] = chunks
}

func TestSearchRanksDocumentsByBestChunk(t *testing.T) {
	provider := newFakeProvider(3)
	provider.embed = func(text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}
	embedder := NewEmbeddingService(provider, nil, nil, nil, 2048)

	store := newMemChunkStore()
	docNear := primitive.NewObjectID()
	docFar := primitive.NewObjectID()
	seedChunk(store, docNear, "aligned chunk", []float32{1, 0, 0})
	seedChunk(store, docNear, "weaker chunk", []float32{1, 1, 0})
	seedChunk(store, docFar, "orthogonal chunk", []float32{0, 1, 0})

	svc := NewRetrievalService(embedder, store, nil)
	results, err := svc.Search(context.Background(), "query", 10, SearchFilters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	if results[0].DocumentID != docNear.Hex() {
		t.Errorf("top result = %s, want the aligned document", results[0].DocumentID)
	}
	if results[0].RelevanceScore <= results[1].RelevanceScore {
		t.Errorf("scores not descending: %v then %v", results[0].RelevanceScore, results[1].RelevanceScore)
	}
	if results[0].MatchingChunks != 2 {
		t.Errorf("matching chunks = %d, want 2", results[0].MatchingChunks)
	}
}

func TestSearchTruncatesToTopK(t *testing.T) {
	provider := newFakeProvider(2)
	provider.embed = func(text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}
	embedder := NewEmbeddingService(provider, nil, nil, nil, 2048)

	store := newMemChunkStore()
	for i := 0; i < 5; i++ {
		seedChunk(store, primitive.NewObjectID(), "chunk", []float32{1, float32(i)})
	}

	svc := NewRetrievalService(embedder, store, nil)
	results, err := svc.Search(context.Background(), "query", 2, SearchFilters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestSearchTieBreaksByDocumentID(t *testing.T) {
	provider := newFakeProvider(2)
	provider.embed = func(text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}
	embedder := NewEmbeddingService(provider, nil, nil, nil, 2048)

	store := newMemChunkStore()
	docA := primitive.NewObjectID()
	docB := primitive.NewObjectID()
	seedChunk(store, docA, "same", []float32{2, 0})
	seedChunk(store, docB, "same", []float32{3, 0})

	svc := NewRetrievalService(embedder, store, nil)
	results, err := svc.Search(context.Background(), "query", 10, SearchFilters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	want := docA.Hex()
	if docB.Hex() < want {
		want = docB.Hex()
	}
	if results[0].DocumentID != want {
		t.Errorf("tie not broken by document id: got %s, want %s", results[0].DocumentID, want)
	}
}

func TestSearchFallsBackToLexicalWhenEmbeddingUnavailable(t *testing.T) {
	provider := newFakeProvider(3)
	provider.err = errors.New("provider down")
	embedder := NewEmbeddingService(provider, nil, nil, nil, 2048)

	store := newMemChunkStore()
	docID := primitive.NewObjectID()
	seedChunk(store, docID, "records management policy", []float32{1, 0, 0})
	seedChunk(store, primitive.NewObjectID(), "unrelated text", []float32{0, 1, 0})

	svc := NewRetrievalService(embedder, store, nil)
	results, err := svc.Search(context.Background(), "records management", 5, SearchFilters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 lexical match", len(results))
	}
	if results[0].DocumentID != docID.Hex() {
		t.Errorf("lexical fallback returned %s", results[0].DocumentID)
	}
}

func TestSearchValidatesTopK(t *testing.T) {
	provider := newFakeProvider(3)
	embedder := NewEmbeddingService(provider, nil, nil, nil, 2048)
	svc := NewRetrievalService(embedder, newMemChunkStore(), nil)

	for _, topK := range []int{0, -1} {
		if _, err := svc.Search(context.Background(), "query", topK, SearchFilters{}); !utils.IsValidation(err) {
			t.Errorf("Search(topK=%d) error = %v, want ValidationError", topK, err)
		}
	}
}

func TestSearchRespectsLanguageFilter(t *testing.T) {
	provider := newFakeProvider(2)
	provider.embed = func(text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}
	embedder := NewEmbeddingService(provider, nil, nil, nil, 2048)

	store := newMemChunkStore()
	enDoc := primitive.NewObjectID()
	frDoc := primitive.NewObjectID()
	store.byDoc[enDoc] = []models.ContentChunk{{DocumentID: enDoc, ChunkID: "en", Text: "english", Language: "en", Vector: []float32{1, 0}}}
	store.byDoc[frDoc] = []models.ContentChunk{{DocumentID: frDoc, ChunkID: "fr", Text: "french", Language: "fr", Vector: []float32{1, 0}}}

	svc := NewRetrievalService(embedder, store, nil)
	results, err := svc.Search(context.Background(), "query", 10, SearchFilters{Language: "fr"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != frDoc.Hex() {
		t.Errorf("filtered results = %+v, want only the fr document", results)
	}
}
