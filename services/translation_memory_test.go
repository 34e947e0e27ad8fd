package services

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"govjobs-semantic-platform/models"
	"govjobs-semantic-platform/utils"
)

func newTMFixture(provider *fakeProvider) (*TranslationMemoryService, *memTranslationStore) {
	store := newMemTranslationStore()
	embedder := NewEmbeddingService(provider, nil, nil, nil, 2048)
	return NewTranslationMemoryService(embedder, store, 0.75), store
}

func TestAddTranslationEmbedsSourceBeforePersist(t *testing.T) {
	provider := newFakeProvider(4)
	svc, store := newTMFixture(provider)

	unit := &models.TranslationUnit{
		SourceText: "records management",
		TargetText: "gestion des documents",
		SourceLang: "en",
		TargetLang: "fr",
	}
	if err := svc.AddTranslation(context.Background(), unit); err != nil {
		t.Fatalf("AddTranslation: %v", err)
	}

	stored, err := store.Get(context.Background(), unit.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.Vector) != 4 {
		t.Errorf("stored vector width = %d, want 4", len(stored.Vector))
	}
}

func TestAddTranslationFailsWhenEmbeddingUnavailable(t *testing.T) {
	provider := newFakeProvider(4)
	provider.err = errors.New("provider down")
	svc, store := newTMFixture(provider)

	unit := &models.TranslationUnit{
		SourceText: "some text",
		TargetText: "du texte",
		SourceLang: "en",
		TargetLang: "fr",
	}
	err := svc.AddTranslation(context.Background(), unit)
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("error = %v, want ErrEmbeddingUnavailable", err)
	}
	if len(store.units) != 0 {
		t.Error("nothing should be persisted when the embedding fails")
	}
}

func TestAddTranslationValidatesLanguagePair(t *testing.T) {
	provider := newFakeProvider(4)
	svc, _ := newTMFixture(provider)

	cases := []struct{ src, tgt string }{
		{"english", "fr"},
		{"en", "FRA"},
		{"en", "en"},
		{"", "fr"},
	}
	for _, tc := range cases {
		unit := &models.TranslationUnit{SourceText: "x", TargetText: "y", SourceLang: tc.src, TargetLang: tc.tgt}
		if err := svc.AddTranslation(context.Background(), unit); !utils.IsValidation(err) {
			t.Errorf("AddTranslation(%q, %q) error = %v, want ValidationError", tc.src, tc.tgt, err)
		}
	}
	if provider.callCount() != 0 {
		t.Errorf("provider called %d times for invalid pairs", provider.callCount())
	}
}

func TestUpdateTranslationReembedsSource(t *testing.T) {
	provider := newFakeProvider(4)
	svc, store := newTMFixture(provider)

	unit := &models.TranslationUnit{
		SourceText: "old source",
		TargetText: "ancienne cible",
		SourceLang: "en",
		TargetLang: "fr",
	}
	if err := svc.AddTranslation(context.Background(), unit); err != nil {
		t.Fatalf("AddTranslation: %v", err)
	}
	callsAfterAdd := provider.callCount()

	updated, err := svc.UpdateTranslation(context.Background(), unit.ID, "a much longer new source text", "nouvelle cible")
	if err != nil {
		t.Fatalf("UpdateTranslation: %v", err)
	}
	if provider.callCount() <= callsAfterAdd {
		t.Error("update did not regenerate the source embedding")
	}
	if updated.SourceText != "a much longer new source text" {
		t.Errorf("source text = %q", updated.SourceText)
	}

	stored, _ := store.Get(context.Background(), unit.ID)
	if stored.TargetText != "nouvelle cible" {
		t.Errorf("stored target = %q", stored.TargetText)
	}
}

func TestFindSimilarThresholdAndLimit(t *testing.T) {
	provider := newFakeProvider(3)
	provider.embed = func(text string) ([]float32, error) {
		switch text {
		case "near":
			return []float32{1, 0, 0}, nil
		case "off":
			return []float32{1, 1, 0}, nil
		default: // the query
			return []float32{1, 0, 0}, nil
		}
	}
	svc, _ := newTMFixture(provider)

	for _, src := range []string{"near", "off"} {
		unit := &models.TranslationUnit{SourceText: src, TargetText: "t", SourceLang: "en", TargetLang: "fr"}
		if err := svc.AddTranslation(context.Background(), unit); err != nil {
			t.Fatalf("AddTranslation(%s): %v", src, err)
		}
	}

	// cos(query, off) is about 0.707, below a 0.9 threshold.
	matches, err := svc.FindSimilar(context.Background(), "query", "en", "fr", 0.9, 10)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(matches) != 1 || matches[0].SourceText != "near" {
		t.Errorf("matches = %+v, want only the near unit", matches)
	}

	// A permissive threshold returns both, capped by limit.
	matches, err = svc.FindSimilar(context.Background(), "query", "en", "fr", 0.1, 1)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("got %d matches, want limit of 1", len(matches))
	}
	if matches[0].SourceText != "near" {
		t.Errorf("best match = %q, want highest similarity first", matches[0].SourceText)
	}
}

func TestFindSimilarNegativeThresholdUsesDefault(t *testing.T) {
	provider := newFakeProvider(3)
	provider.embed = func(text string) ([]float32, error) {
		switch text {
		case "near":
			return []float32{1, 0, 0}, nil
		case "off":
			return []float32{1, 1, 0}, nil
		default:
			return []float32{1, 0, 0}, nil
		}
	}
	store := newMemTranslationStore()
	embedder := NewEmbeddingService(provider, nil, nil, nil, 2048)
	svc := NewTranslationMemoryService(embedder, store, 0.9)

	for _, src := range []string{"near", "off"} {
		unit := &models.TranslationUnit{SourceText: src, TargetText: "t", SourceLang: "en", TargetLang: "fr"}
		if err := svc.AddTranslation(context.Background(), unit); err != nil {
			t.Fatalf("AddTranslation(%s): %v", src, err)
		}
	}

	// cos(query, off) is about 0.707, below the configured 0.9 default.
	matches, err := svc.FindSimilar(context.Background(), "query", "en", "fr", -1, 10)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(matches) != 1 || matches[0].SourceText != "near" {
		t.Errorf("matches = %+v, want only the unit above the default threshold", matches)
	}
}

func TestFindSimilarValidation(t *testing.T) {
	provider := newFakeProvider(3)
	svc, _ := newTMFixture(provider)

	if _, err := svc.FindSimilar(context.Background(), "q", "en", "fr", 1.5, 10); !utils.IsValidation(err) {
		t.Errorf("threshold 1.5 error = %v, want ValidationError", err)
	}
	if _, err := svc.FindSimilar(context.Background(), "q", "en", "fr", 0.5, 0); !utils.IsValidation(err) {
		t.Errorf("limit 0 error = %v, want ValidationError", err)
	}
	if _, err := svc.FindSimilar(context.Background(), "q", "en", "en", 0.5, 10); !utils.IsValidation(err) {
		t.Errorf("same language pair error = %v, want ValidationError", err)
	}
}

func TestFindSimilarRespectsLanguagePair(t *testing.T) {
	provider := newFakeProvider(3)
	svc, _ := newTMFixture(provider)

	enFr := &models.TranslationUnit{SourceText: "hello", TargetText: "bonjour", SourceLang: "en", TargetLang: "fr"}
	enDe := &models.TranslationUnit{SourceText: "hello", TargetText: "hallo", SourceLang: "en", TargetLang: "de"}
	for _, u := range []*models.TranslationUnit{enFr, enDe} {
		if err := svc.AddTranslation(context.Background(), u); err != nil {
			t.Fatalf("AddTranslation: %v", err)
		}
	}

	matches, err := svc.FindSimilar(context.Background(), "hello", "en", "de", 0.0, 10)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(matches) != 1 || matches[0].TargetText != "hallo" {
		t.Errorf("matches = %+v, want only the en-de unit", matches)
	}
}

func TestDeleteTranslation(t *testing.T) {
	provider := newFakeProvider(3)
	svc, store := newTMFixture(provider)

	unit := &models.TranslationUnit{SourceText: "x", TargetText: "y", SourceLang: "en", TargetLang: "fr"}
	if err := svc.AddTranslation(context.Background(), unit); err != nil {
		t.Fatalf("AddTranslation: %v", err)
	}
	if err := svc.DeleteTranslation(context.Background(), unit.ID); err != nil {
		t.Fatalf("DeleteTranslation: %v", err)
	}
	if _, err := store.Get(context.Background(), unit.ID); !utils.IsNotFound(err) {
		t.Errorf("unit still present after delete: %v", err)
	}
	if err := svc.DeleteTranslation(context.Background(), primitive.NewObjectID()); !utils.IsNotFound(err) {
		t.Errorf("deleting absent unit error = %v, want NotFoundError", err)
	}
}

func TestQualityScoreDeterministicAndBounded(t *testing.T) {
	svc, _ := newTMFixture(newFakeProvider(3))

	src := "The incumbent manages 12 regional offices for the ATIP program."
	tgt := "Le titulaire gère 12 bureaux régionaux pour le programme ATIP."

	first, err := svc.QualityScore(src, tgt, "en", "fr")
	if err != nil {
		t.Fatalf("QualityScore: %v", err)
	}
	second, _ := svc.QualityScore(src, tgt, "en", "fr")
	if first != second {
		t.Errorf("score not deterministic: %v then %v", first, second)
	}
	if first < 0 || first > 1 {
		t.Errorf("score = %v, want within [0, 1]", first)
	}

	// Dropping the numeric and acronym tokens lowers the score.
	degraded, _ := svc.QualityScore(src, "Le titulaire gère des bureaux.", "en", "fr")
	if degraded >= first {
		t.Errorf("degraded translation scored %v, not below %v", degraded, first)
	}
}

func TestQualityScoreEmptyTextLowButDefined(t *testing.T) {
	svc, _ := newTMFixture(newFakeProvider(3))

	score, err := svc.QualityScore("", "quelque chose", "en", "fr")
	if err != nil {
		t.Fatalf("QualityScore: %v", err)
	}
	if score != 0.1 {
		t.Errorf("empty source score = %v, want 0.1", score)
	}

	if _, err := svc.QualityScore("a", "b", "english", "fr"); !utils.IsValidation(err) {
		t.Errorf("malformed language error = %v, want ValidationError", err)
	}
}
