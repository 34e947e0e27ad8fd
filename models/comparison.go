package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comparison kinds requested by callers.
const (
	CompareSimilarity   = "similarity"
	CompareSkillGap     = "skill_gap"
	CompareRequirements = "requirements"
)

// SectionScore is a per-section similarity entry in a comparison breakdown.
type SectionScore struct {
	SectionID string  `bson:"section_id" json:"section_id"`
	Title     string  `bson:"title,omitempty" json:"title,omitempty"`
	Score     float64 `bson:"score" json:"score"`
}

// SkillGap is one skill present in the target job but absent or weaker in the
// source job. GapScore is the normalized proficiency delta in (0, 1].
type SkillGap struct {
	Skill       string  `bson:"skill" json:"skill"`
	SourceLevel int     `bson:"source_level" json:"source_level"`
	TargetLevel int     `bson:"target_level" json:"target_level"`
	GapScore    float64 `bson:"gap_score" json:"gap_score"`
	Remediation string  `bson:"remediation,omitempty" json:"remediation,omitempty"`
}

// ComparisonResult is the derived, cacheable output of a job-to-job
// comparison. It is always recomputed and replaced as a unit; at most one
// cached result exists per (job_a_id, job_b_id, kind).
type ComparisonResult struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	JobAID            primitive.ObjectID `bson:"job_a_id" json:"job_a_id"`
	JobBID            primitive.ObjectID `bson:"job_b_id" json:"job_b_id"`
	Kind              string             `bson:"kind" json:"kind"`
	OverallScore      float64            `bson:"overall_score" json:"overall_score"`
	SimilarityScore   *float64           `bson:"similarity_score,omitempty" json:"similarity_score,omitempty"`
	SectionScores     []SectionScore     `bson:"section_scores,omitempty" json:"section_scores,omitempty"`
	SkillGaps         []SkillGap         `bson:"skill_gaps,omitempty" json:"skill_gaps,omitempty"`
	RequirementDeltas []string           `bson:"requirement_deltas,omitempty" json:"requirement_deltas,omitempty"`
	ComputedAt        time.Time          `bson:"computed_at" json:"computed_at"`
}
