package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"govjobs-semantic-platform/internal/logger"
	"govjobs-semantic-platform/models"
	"govjobs-semantic-platform/utils"
)

// ComparisonStore persists comparison results. A result is replaced as a
// unit; at most one row exists per (job_a_id, job_b_id, kind).
type ComparisonStore interface {
	Put(ctx context.Context, result *models.ComparisonResult) error
}

// MongoComparisonStore backs ComparisonStore with the comparisons collection.
type MongoComparisonStore struct {
	col *mongo.Collection
}

func NewMongoComparisonStore(db *mongo.Database) *MongoComparisonStore {
	return &MongoComparisonStore{col: db.Collection("comparisons")}
}

func (s *MongoComparisonStore) Put(ctx context.Context, result *models.ComparisonResult) error {
	filter := bson.M{
		"job_a_id": result.JobAID,
		"job_b_id": result.JobBID,
		"kind":     result.Kind,
	}
	_, err := s.col.ReplaceOne(ctx, filter, result, options.Replace().SetUpsert(true))
	return err
}

// TransitionHistory supplies historical transition rates between
// classifications. It is an external collaborator; a nil history defaults to
// a neutral rate.
type TransitionHistory interface {
	TransitionRate(ctx context.Context, fromClassification, toClassification string) (float64, error)
}

// CareerPathWeights are policy parameters, not fixed law: the exact weighting
// of feasibility inputs is configuration.
type CareerPathWeights struct {
	SkillGap       float64
	Classification float64
	Transition     float64
}

// ComparisonService produces job-to-job comparisons, skill-gap deltas, and
// career-path feasibility scores on top of the retrieval stack.
type ComparisonService struct {
	docs        DocumentStore
	chunks      ChunkStore
	store       ComparisonStore
	cache       *ComparisonResultCache
	transitions TransitionHistory
	strategy    AggregationStrategy
	weights     CareerPathWeights
	maxBatch    int
}

func NewComparisonService(docs DocumentStore, chunks ChunkStore, store ComparisonStore, cache *ComparisonResultCache, transitions TransitionHistory, strategy AggregationStrategy, weights CareerPathWeights, maxBatch int) *ComparisonService {
	if maxBatch <= 0 {
		maxBatch = 50
	}
	return &ComparisonService{
		docs:        docs,
		chunks:      chunks,
		store:       store,
		cache:       cache,
		transitions: transitions,
		strategy:    strategy,
		weights:     weights,
		maxBatch:    maxBatch,
	}
}

func normalizeKinds(kinds []string) (string, []string, error) {
	if len(kinds) == 0 {
		kinds = []string{models.CompareSimilarity, models.CompareSkillGap, models.CompareRequirements}
	}
	seen := make(map[string]bool, len(kinds))
	out := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		switch kind {
		case models.CompareSimilarity, models.CompareSkillGap, models.CompareRequirements:
		default:
			return "", nil, utils.NewValidationError("kinds", fmt.Sprintf("unknown comparison kind %q", kind))
		}
		if !seen[kind] {
			seen[kind] = true
			out = append(out, kind)
		}
	}
	sort.Strings(out)
	return strings.Join(out, "+"), out, nil
}

// Compare computes the requested comparison kinds for an ordered document
// pair. Absent documents surface as NotFoundError. The result replaces any
// previously cached result for the same (a, b, kind).
func (s *ComparisonService) Compare(ctx context.Context, jobAID, jobBID primitive.ObjectID, kinds []string) (*models.ComparisonResult, error) {
	kindKey, wanted, err := normalizeKinds(kinds)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, jobAID.Hex(), jobBID.Hex(), kindKey); ok {
			return cached, nil
		}
	}

	docA, err := s.docs.GetDocument(ctx, jobAID)
	if err != nil {
		return nil, err
	}
	docB, err := s.docs.GetDocument(ctx, jobBID)
	if err != nil {
		return nil, err
	}

	result := &models.ComparisonResult{
		JobAID:     jobAID,
		JobBID:     jobBID,
		Kind:       kindKey,
		ComputedAt: time.Now(),
	}

	var subScores []float64
	for _, kind := range wanted {
		switch kind {
		case models.CompareSimilarity:
			score, sections, err := s.similarityBreakdown(ctx, docA, docB)
			if err != nil {
				return nil, err
			}
			result.SimilarityScore = &score
			result.SectionScores = sections
			subScores = append(subScores, score)
		case models.CompareSkillGap:
			gaps := SkillGapAnalysis(docA, docB)
			result.SkillGaps = gaps
			subScores = append(subScores, 1.0-meanGapScore(gaps))
		case models.CompareRequirements:
			deltas, coverage := requirementDeltas(docA, docB)
			result.RequirementDeltas = deltas
			subScores = append(subScores, coverage)
		}
	}

	var sum float64
	for _, sc := range subScores {
		sum += sc
	}
	if len(subScores) > 0 {
		result.OverallScore = sum / float64(len(subScores))
	}

	if s.store != nil {
		if err := s.store.Put(ctx, result); err != nil {
			logger.Warn("Failed to persist comparison result", "error", err)
		}
	}
	if s.cache != nil {
		s.cache.Set(ctx, result)
	}
	return result, nil
}

// BatchCompare compares a base document against candidates, ordered by
// descending similarity. The limit is capped to bound compute cost.
func (s *ComparisonService) BatchCompare(ctx context.Context, baseID primitive.ObjectID, candidates []primitive.ObjectID, limit int) ([]models.ComparisonResult, error) {
	if limit <= 0 {
		return nil, utils.NewValidationError("limit", "must be a positive integer")
	}
	if limit > s.maxBatch {
		return nil, utils.NewValidationError("limit", fmt.Sprintf("must not exceed %d", s.maxBatch))
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]models.ComparisonResult, 0, len(candidates))
	for _, candidateID := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if candidateID == baseID {
			continue
		}
		result, err := s.Compare(ctx, baseID, candidateID, []string{models.CompareSimilarity})
		if err != nil {
			if utils.IsNotFound(err) {
				logger.Warn("Skipping absent candidate in batch compare", "candidate", candidateID.Hex())
				continue
			}
			return nil, err
		}
		results = append(results, *result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].OverallScore != results[j].OverallScore {
			return results[i].OverallScore > results[j].OverallScore
		}
		return results[i].JobBID.Hex() < results[j].JobBID.Hex()
	})
	return results, nil
}

// similarityBreakdown computes the document-level score plus a per-section
// breakdown from document A's perspective.
func (s *ComparisonService) similarityBreakdown(ctx context.Context, docA, docB *models.JobDocument) (float64, []models.SectionScore, error) {
	chunksA, err := s.chunks.DocumentChunks(ctx, docA.ID)
	if err != nil {
		return 0, nil, err
	}
	chunksB, err := s.chunks.DocumentChunks(ctx, docB.ID)
	if err != nil {
		return 0, nil, err
	}

	vectorsB := embeddedVectors(chunksB)
	vectorsA := embeddedVectors(chunksA)

	overall, err := DocumentSimilarity(vectorsA, vectorsB, s.strategy)
	if err != nil {
		return 0, nil, err
	}

	bySection := make(map[string][][]float32)
	for _, chunk := range chunksA {
		if chunk.HasVector() && chunk.SectionID != "" {
			bySection[chunk.SectionID] = append(bySection[chunk.SectionID], chunk.Vector)
		}
	}

	var sections []models.SectionScore
	for _, section := range docA.Sections {
		vectors, ok := bySection[section.SectionID]
		if !ok {
			continue
		}
		score, err := DocumentSimilarity(vectors, vectorsB, s.strategy)
		if err != nil {
			return 0, nil, err
		}
		sections = append(sections, models.SectionScore{
			SectionID: section.SectionID,
			Title:     section.Title,
			Score:     score,
		})
	}
	return overall, sections, nil
}

func embeddedVectors(chunks []models.ContentChunk) [][]float32 {
	out := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.HasVector() {
			out = append(out, chunk.Vector)
		}
	}
	return out
}

// SkillGapAnalysis diffs two documents' skill sets: every skill in the target
// that is absent or weaker in the source yields a gap entry with a normalized
// proficiency delta.
func SkillGapAnalysis(source, target *models.JobDocument) []models.SkillGap {
	var gaps []models.SkillGap
	for _, want := range target.Skills {
		have, ok := source.SkillByName(want.Name)
		sourceLevel := 0
		if ok {
			sourceLevel = have.Level
		}
		if sourceLevel >= want.Level {
			continue
		}
		gaps = append(gaps, models.SkillGap{
			Skill:       want.Name,
			SourceLevel: sourceLevel,
			TargetLevel: want.Level,
			GapScore:    float64(want.Level-sourceLevel) / float64(models.SkillLevelMax),
			Remediation: fmt.Sprintf("Raise %s proficiency to level %d", want.Name, want.Level),
		})
	}
	return gaps
}

// requirementDeltas lists target requirements the source does not cover and
// returns the source's coverage ratio of the target's requirement set.
func requirementDeltas(source, target *models.JobDocument) ([]string, float64) {
	if len(target.Requirements) == 0 {
		return nil, 1.0
	}

	have := make(map[string]bool, len(source.Requirements))
	for _, req := range source.Requirements {
		have[normalizeRequirement(req)] = true
	}

	var deltas []string
	covered := 0
	for _, req := range target.Requirements {
		if have[normalizeRequirement(req)] {
			covered++
			continue
		}
		deltas = append(deltas, req)
	}
	return deltas, float64(covered) / float64(len(target.Requirements))
}

func normalizeRequirement(req string) string {
	return strings.Join(strings.Fields(strings.ToLower(req)), " ")
}

func meanGapScore(gaps []models.SkillGap) float64 {
	if len(gaps) == 0 {
		return 0
	}
	var sum float64
	for _, g := range gaps {
		sum += g.GapScore
	}
	return sum / float64(len(gaps))
}

// CareerFeasibility combines skill-gap magnitude, classification-level
// distance, and historical transition data into a score in [0, 1].
func (s *ComparisonService) CareerFeasibility(ctx context.Context, fromID, toID primitive.ObjectID) (float64, error) {
	from, err := s.docs.GetDocument(ctx, fromID)
	if err != nil {
		return 0, err
	}
	to, err := s.docs.GetDocument(ctx, toID)
	if err != nil {
		return 0, err
	}

	gapTerm := 1.0 - meanGapScore(SkillGapAnalysis(from, to))
	classTerm := 1.0 - classificationDistance(from.Classification, to.Classification)

	transitionRate := 0.5 // neutral when no history collaborator is wired
	if s.transitions != nil {
		rate, err := s.transitions.TransitionRate(ctx, from.Classification, to.Classification)
		if err != nil {
			logger.Warn("Transition history unavailable, using neutral rate", "error", err)
		} else {
			transitionRate = rate
		}
	}

	totalWeight := s.weights.SkillGap + s.weights.Classification + s.weights.Transition
	if totalWeight <= 0 {
		return 0, utils.NewValidationError("weights", "career path weights must sum to a positive value")
	}
	score := (s.weights.SkillGap*gapTerm + s.weights.Classification*classTerm + s.weights.Transition*transitionRate) / totalWeight
	return clamp01(score), nil
}

// classificationDistance estimates how far apart two classifications are,
// normalized to [0, 1]. Level digits dominate; a group change adds a penalty.
func classificationDistance(a, b string) float64 {
	groupA, levelA := parseClassification(a)
	groupB, levelB := parseClassification(b)

	diff := levelA - levelB
	if diff < 0 {
		diff = -diff
	}
	distance := float64(diff) / float64(models.SkillLevelMax)
	if groupA != groupB {
		distance += 0.25
	}
	return clamp01(distance)
}

// parseClassification splits a code like "AS-04" into group and level.
func parseClassification(code string) (string, int) {
	code = strings.TrimSpace(strings.ToUpper(code))
	if i := strings.LastIndexByte(code, '-'); i >= 0 {
		level, err := strconv.Atoi(strings.TrimLeft(code[i+1:], "0"))
		if err == nil {
			return code[:i], level
		}
		return code[:i], 0
	}
	return code, 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
