package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"govjobs-semantic-platform/models"
	"govjobs-semantic-platform/utils"
)

// ErrEmbeddingUnavailable signals a transient embedding-dependency failure.
// Callers should retry later; nothing was persisted.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable for this input")

// TranslationStore persists translation units.
type TranslationStore interface {
	Insert(ctx context.Context, unit *models.TranslationUnit) error
	Update(ctx context.Context, unit *models.TranslationUnit) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.TranslationUnit, error)
	UnitsByPair(ctx context.Context, sourceLang, targetLang string) ([]models.TranslationUnit, error)
}

// MongoTranslationStore backs TranslationStore with translation_units.
type MongoTranslationStore struct {
	col *mongo.Collection
}

func NewMongoTranslationStore(db *mongo.Database) *MongoTranslationStore {
	return &MongoTranslationStore{col: db.Collection("translation_units")}
}

func (s *MongoTranslationStore) Insert(ctx context.Context, unit *models.TranslationUnit) error {
	if unit.ID.IsZero() {
		unit.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, unit)
	return err
}

func (s *MongoTranslationStore) Update(ctx context.Context, unit *models.TranslationUnit) error {
	result, err := s.col.ReplaceOne(ctx, bson.M{"_id": unit.ID}, unit)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return &utils.NotFoundError{Resource: "translation unit", ID: unit.ID.Hex()}
	}
	return nil
}

// Delete removes a unit; the embedding lives inline, so the cascade is free.
func (s *MongoTranslationStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return &utils.NotFoundError{Resource: "translation unit", ID: id.Hex()}
	}
	return nil
}

func (s *MongoTranslationStore) Get(ctx context.Context, id primitive.ObjectID) (*models.TranslationUnit, error) {
	var unit models.TranslationUnit
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&unit)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, &utils.NotFoundError{Resource: "translation unit", ID: id.Hex()}
		}
		return nil, err
	}
	return &unit, nil
}

func (s *MongoTranslationStore) UnitsByPair(ctx context.Context, sourceLang, targetLang string) ([]models.TranslationUnit, error) {
	cursor, err := s.col.Find(ctx, bson.M{
		"source_lang": sourceLang,
		"target_lang": targetLang,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var units []models.TranslationUnit
	if err := cursor.All(ctx, &units); err != nil {
		return nil, err
	}
	return units, nil
}

// TranslationMemoryService applies the embedding+similarity stack to
// bilingual segment pairs.
type TranslationMemoryService struct {
	embedder *EmbeddingService
	store    TranslationStore

	// defaultThreshold is used by FindSimilar when the caller passes a
	// negative threshold.
	defaultThreshold float64
}

func NewTranslationMemoryService(embedder *EmbeddingService, store TranslationStore, defaultThreshold float64) *TranslationMemoryService {
	if defaultThreshold < 0 || defaultThreshold > 1 {
		defaultThreshold = 0.75
	}
	return &TranslationMemoryService{embedder: embedder, store: store, defaultThreshold: defaultThreshold}
}

func validateLanguagePair(sourceLang, targetLang string) error {
	if !isLanguageCode(sourceLang) {
		return utils.NewValidationError("source_lang", fmt.Sprintf("invalid language code %q", sourceLang))
	}
	if !isLanguageCode(targetLang) {
		return utils.NewValidationError("target_lang", fmt.Sprintf("invalid language code %q", targetLang))
	}
	if strings.EqualFold(sourceLang, targetLang) {
		return utils.NewValidationError("target_lang", "source and target language must differ")
	}
	return nil
}

func isLanguageCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// AddTranslation embeds the source text synchronously and persists the unit.
// A unit is never stored with a stale or missing embedding for its current
// source text.
func (tm *TranslationMemoryService) AddTranslation(ctx context.Context, unit *models.TranslationUnit) error {
	if err := validateLanguagePair(unit.SourceLang, unit.TargetLang); err != nil {
		return err
	}
	if strings.TrimSpace(unit.SourceText) == "" {
		return utils.NewValidationError("source_text", "must not be empty")
	}
	if unit.QualityScore != nil && (*unit.QualityScore < 0 || *unit.QualityScore > 1) {
		return utils.NewValidationError("quality_score", "must be in [0, 1]")
	}

	vector := tm.embedder.Generate(ctx, unit.SourceText)
	if vector == nil {
		return ErrEmbeddingUnavailable
	}
	unit.Vector = vector
	now := time.Now()
	unit.CreatedAt = now
	unit.UpdatedAt = now
	return tm.store.Insert(ctx, unit)
}

// UpdateTranslation revises a unit's texts. The source embedding is
// regenerated before the write.
func (tm *TranslationMemoryService) UpdateTranslation(ctx context.Context, id primitive.ObjectID, sourceText, targetText string) (*models.TranslationUnit, error) {
	if strings.TrimSpace(sourceText) == "" {
		return nil, utils.NewValidationError("source_text", "must not be empty")
	}

	unit, err := tm.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	vector := tm.embedder.Generate(ctx, sourceText)
	if vector == nil {
		return nil, ErrEmbeddingUnavailable
	}

	unit.SourceText = sourceText
	unit.TargetText = targetText
	unit.Vector = vector
	unit.UpdatedAt = time.Now()
	if err := tm.store.Update(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// DeleteTranslation removes a unit and its embedding.
func (tm *TranslationMemoryService) DeleteTranslation(ctx context.Context, id primitive.ObjectID) error {
	return tm.store.Delete(ctx, id)
}

// FindSimilar embeds the query and returns units within the language pair
// whose source similarity reaches threshold, best first, at most limit.
// A negative threshold selects the configured default.
func (tm *TranslationMemoryService) FindSimilar(ctx context.Context, query, sourceLang, targetLang string, threshold float64, limit int) ([]models.TranslationMatch, error) {
	if err := validateLanguagePair(sourceLang, targetLang); err != nil {
		return nil, err
	}
	if threshold < 0 {
		threshold = tm.defaultThreshold
	}
	if threshold > 1 {
		return nil, utils.NewValidationError("threshold", "must be in [0, 1]")
	}
	if limit <= 0 {
		return nil, utils.NewValidationError("limit", "must be a positive integer")
	}

	vector := tm.embedder.Generate(ctx, query)
	if vector == nil {
		return nil, ErrEmbeddingUnavailable
	}

	units, err := tm.store.UnitsByPair(ctx, sourceLang, targetLang)
	if err != nil {
		return nil, err
	}

	matches := make([]models.TranslationMatch, 0, limit)
	for _, unit := range units {
		if len(unit.Vector) == 0 {
			continue
		}
		sim, err := CosineSimilarity(vector, unit.Vector)
		if err != nil {
			return nil, err
		}
		if sim < threshold {
			continue
		}
		matches = append(matches, models.TranslationMatch{
			UnitID:          unit.ID.Hex(),
			SourceText:      unit.SourceText,
			TargetText:      unit.TargetText,
			SimilarityScore: sim,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].SimilarityScore != matches[j].SimilarityScore {
			return matches[i].SimilarityScore > matches[j].SimilarityScore
		}
		return matches[i].UnitID < matches[j].UnitID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// QualityScore is a deterministic heuristic over a bilingual pair, in [0, 1].
// Empty source or target scores low but defined; only malformed input (a bad
// language pair) is an error. The heuristic blends length ratio, carry-over
// of numbers and acronym-like tokens, and punctuation balance.
func (tm *TranslationMemoryService) QualityScore(sourceText, targetText, sourceLang, targetLang string) (float64, error) {
	if err := validateLanguagePair(sourceLang, targetLang); err != nil {
		return 0, err
	}

	sourceWords := strings.Fields(sourceText)
	targetWords := strings.Fields(targetText)
	if len(sourceWords) == 0 || len(targetWords) == 0 {
		return 0.1, nil
	}

	lengthScore := lengthRatio(len(sourceWords), len(targetWords))
	carryScore := carryOverRatio(sourceWords, targetWords)
	punctScore := punctuationBalance(sourceText, targetText)

	score := 0.5*lengthScore + 0.3*carryScore + 0.2*punctScore
	return clamp01(score), nil
}

func lengthRatio(a, b int) float64 {
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}

// carryOverRatio measures how many invariant tokens of the source (numbers,
// acronyms) survive into the target. Segments without invariant tokens score
// neutrally.
func carryOverRatio(source, target []string) float64 {
	invariant := func(word string) bool {
		word = strings.Trim(word, ".,;:!?()[]{}\"")
		if word == "" {
			return false
		}
		hasDigit := false
		allUpper := true
		for _, r := range word {
			if unicode.IsDigit(r) {
				hasDigit = true
			}
			if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
				allUpper = false
			}
		}
		return hasDigit || (allUpper && len(word) >= 2)
	}

	targetSet := make(map[string]bool, len(target))
	for _, word := range target {
		targetSet[strings.Trim(word, ".,;:!?()[]{}\"")] = true
	}

	total, carried := 0, 0
	for _, word := range source {
		if !invariant(word) {
			continue
		}
		total++
		if targetSet[strings.Trim(word, ".,;:!?()[]{}\"")] {
			carried++
		}
	}
	if total == 0 {
		return 0.75
	}
	return float64(carried) / float64(total)
}

func punctuationBalance(source, target string) float64 {
	count := func(s string) int {
		n := 0
		for _, r := range s {
			if unicode.IsPunct(r) {
				n++
			}
		}
		return n
	}
	a, b := count(source), count(target)
	if a == 0 && b == 0 {
		return 1.0
	}
	if a > b {
		a, b = b, a
	}
	if b == 0 {
		return 1.0
	}
	return float64(a) / float64(b)
}
