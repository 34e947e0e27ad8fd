package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SkillLevelMax is the top of the proficiency scale used across documents.
const SkillLevelMax = 5

// Section is a named region of a job description (e.g. "Key Activities").
type Section struct {
	SectionID string `bson:"section_id" json:"section_id"`
	Title     string `bson:"title" json:"title"`
	Text      string `bson:"text" json:"text"`
	Order     int    `bson:"order" json:"order"`
}

// Skill is an extracted skill with a proficiency level in [1, SkillLevelMax].
// Extraction itself is owned by the upstream content processor.
type Skill struct {
	Name  string `bson:"name" json:"name"`
	Level int    `bson:"level" json:"level"`
}

// JobDocument is a government job description with its extracted structure.
type JobDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title          string             `bson:"title" json:"title"`
	Classification string             `bson:"classification" json:"classification"` // e.g. "AS-04"
	Language       string             `bson:"language" json:"language"`
	Sections       []Section          `bson:"sections,omitempty" json:"sections,omitempty"`
	Skills         []Skill            `bson:"skills,omitempty" json:"skills,omitempty"`
	Requirements   []string           `bson:"requirements,omitempty" json:"requirements,omitempty"`
	HasEmbeddings  bool               `bson:"has_embeddings" json:"has_embeddings"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// FullText joins all section text in order. Used when chunking a document
// that has no usable section structure is not enough.
func (d *JobDocument) FullText() string {
	if len(d.Sections) == 0 {
		return ""
	}
	parts := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		if strings.TrimSpace(s.Text) != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// SkillByName returns the skill with the given name, matched case-insensitively.
func (d *JobDocument) SkillByName(name string) (Skill, bool) {
	for _, s := range d.Skills {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Skill{}, false
}
