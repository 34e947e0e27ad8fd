package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TranslationUnit is a bilingual segment pair. The embedding is always of the
// source text and is regenerated whenever the source text changes.
type TranslationUnit struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID    primitive.ObjectID `bson:"project_id,omitempty" json:"project_id,omitempty"`
	SourceText   string             `bson:"source_text" json:"source_text"`
	TargetText   string             `bson:"target_text" json:"target_text"`
	SourceLang   string             `bson:"source_lang" json:"source_lang"`
	TargetLang   string             `bson:"target_lang" json:"target_lang"`
	Vector       []float32          `bson:"vector,omitempty" json:"-"`
	QualityScore *float64           `bson:"quality_score,omitempty" json:"quality_score,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// TranslationMatch is a translation-memory hit for a query segment.
type TranslationMatch struct {
	UnitID          string  `json:"unit_id"`
	SourceText      string  `json:"source_text"`
	TargetText      string  `json:"target_text"`
	SimilarityScore float64 `json:"similarity_score"`
}
