package services

import (
	"context"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"govjobs-semantic-platform/models"
	"govjobs-semantic-platform/utils"
)

// fakeProvider is an in-memory ai.Provider for tests.
type fakeProvider struct {
	mu    sync.Mutex
	dims  int
	calls int
	err   error
	// embed overrides the default deterministic vector when set.
	embed func(text string) ([]float32, error)
}

func newFakeProvider(dims int) *fakeProvider {
	return &fakeProvider{dims: dims}
}

func (p *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.embed != nil {
		return p.embed(text)
	}
	if p.err != nil {
		return nil, p.err
	}
	// Deterministic vector derived from the text length so different inputs
	// get different directions.
	vec := make([]float32, p.dims)
	for i := range vec {
		vec[i] = float32((len(text)+i)%7) + 1
	}
	return vec, nil
}

func (p *fakeProvider) Dimensions() int { return p.dims }
func (p *fakeProvider) Model() string   { return "fake-embedding-model" }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// memChunkStore is an in-memory ChunkStore.
type memChunkStore struct {
	mu           sync.Mutex
	byDoc        map[primitive.ObjectID][]models.ContentChunk
	replaceCalls int
}

func newMemChunkStore() *memChunkStore {
	return &memChunkStore{byDoc: make(map[primitive.ObjectID][]models.ContentChunk)}
}

func (s *memChunkStore) ReplaceDocumentChunks(ctx context.Context, documentID primitive.ObjectID, chunks []models.ContentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	s.byDoc[documentID] = append([]models.ContentChunk(nil), chunks...)
	return nil
}

func (s *memChunkStore) DeleteDocumentChunks(ctx context.Context, documentID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byDoc, documentID)
	return nil
}

func (s *memChunkStore) DocumentChunks(ctx context.Context, documentID primitive.ObjectID) ([]models.ContentChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ContentChunk(nil), s.byDoc[documentID]...), nil
}

func (s *memChunkStore) ChunksMissingEmbeddings(ctx context.Context, limit int64) ([]models.ContentChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ContentChunk
	for _, chunks := range s.byDoc {
		for _, c := range chunks {
			if !c.HasVector() {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (s *memChunkStore) NearestChunks(ctx context.Context, vector []float32, k int, filter ChunkFilter) ([]ChunkMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []ChunkMatch
	for _, chunks := range s.byDoc {
		for _, c := range chunks {
			if !c.HasVector() {
				continue
			}
			if filter.Language != "" && c.Language != filter.Language {
				continue
			}
			if filter.Classification != "" && c.Classification != filter.Classification {
				continue
			}
			sim, err := CosineSimilarity(vector, c.Vector)
			if err != nil {
				return nil, err
			}
			matches = append(matches, ChunkMatch{Chunk: c, Similarity: sim})
		}
	}
	return matches, nil
}

func (s *memChunkStore) KeywordChunks(ctx context.Context, query string, k int, filter ChunkFilter) ([]ChunkMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []ChunkMatch
	for _, chunks := range s.byDoc {
		for _, c := range chunks {
			if strings.Contains(strings.ToLower(c.Text), strings.ToLower(query)) {
				matches = append(matches, ChunkMatch{Chunk: c, Similarity: 0.5})
			}
		}
	}
	return matches, nil
}

// memDocumentStore is an in-memory DocumentStore.
type memDocumentStore struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]*models.JobDocument
}

func newMemDocumentStore(docs ...*models.JobDocument) *memDocumentStore {
	s := &memDocumentStore{docs: make(map[primitive.ObjectID]*models.JobDocument)}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *memDocumentStore) GetDocument(ctx context.Context, id primitive.ObjectID) (*models.JobDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, &utils.NotFoundError{Resource: "document", ID: id.Hex()}
	}
	copied := *doc
	return &copied, nil
}

func (s *memDocumentStore) ListDocuments(ctx context.Context, limit int64, missingEmbeddingsOnly bool) ([]models.JobDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobDocument
	for _, doc := range s.docs {
		if missingEmbeddingsOnly && doc.HasEmbeddings {
			continue
		}
		out = append(out, *doc)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memDocumentStore) SetHasEmbeddings(ctx context.Context, id primitive.ObjectID, has bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return &utils.NotFoundError{Resource: "document", ID: id.Hex()}
	}
	doc.HasEmbeddings = has
	return nil
}

// memComparisonStore records Put calls.
type memComparisonStore struct {
	mu      sync.Mutex
	results []models.ComparisonResult
}

func (s *memComparisonStore) Put(ctx context.Context, result *models.ComparisonResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, *result)
	return nil
}

// memTranslationStore is an in-memory TranslationStore.
type memTranslationStore struct {
	mu    sync.Mutex
	units map[primitive.ObjectID]*models.TranslationUnit
}

func newMemTranslationStore() *memTranslationStore {
	return &memTranslationStore{units: make(map[primitive.ObjectID]*models.TranslationUnit)}
}

func (s *memTranslationStore) Insert(ctx context.Context, unit *models.TranslationUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if unit.ID.IsZero() {
		unit.ID = primitive.NewObjectID()
	}
	copied := *unit
	s.units[unit.ID] = &copied
	return nil
}

func (s *memTranslationStore) Update(ctx context.Context, unit *models.TranslationUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[unit.ID]; !ok {
		return &utils.NotFoundError{Resource: "translation unit", ID: unit.ID.Hex()}
	}
	copied := *unit
	s.units[unit.ID] = &copied
	return nil
}

func (s *memTranslationStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[id]; !ok {
		return &utils.NotFoundError{Resource: "translation unit", ID: id.Hex()}
	}
	delete(s.units, id)
	return nil
}

func (s *memTranslationStore) Get(ctx context.Context, id primitive.ObjectID) (*models.TranslationUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unit, ok := s.units[id]
	if !ok {
		return nil, &utils.NotFoundError{Resource: "translation unit", ID: id.Hex()}
	}
	copied := *unit
	return &copied, nil
}

func (s *memTranslationStore) UnitsByPair(ctx context.Context, sourceLang, targetLang string) ([]models.TranslationUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TranslationUnit
	for _, unit := range s.units {
		if unit.SourceLang == sourceLang && unit.TargetLang == targetLang {
			out = append(out, *unit)
		}
	}
	return out, nil
}
