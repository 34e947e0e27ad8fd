package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"govjobs-semantic-platform/internal/logger"
	"govjobs-semantic-platform/internal/telemetry"
	"govjobs-semantic-platform/models"
	"govjobs-semantic-platform/utils"
)

// BatchOptions controls a corpus embedding run.
type BatchOptions struct {
	// Limit caps how many documents are considered. Zero means no cap.
	Limit int64
	// Force regenerates embeddings even for documents already marked done.
	Force bool
	// DryRun reports what would be processed without writing anything.
	DryRun bool
	// Concurrency overrides the configured worker count when positive.
	Concurrency int
}

// BatchReport summarizes a run. PendingChunks is only populated on dry runs,
// where it counts stored chunks still lacking a vector.
type BatchReport struct {
	Planned       int           `json:"planned"`
	Processed     int           `json:"processed"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	PendingChunks int           `json:"pending_chunks,omitempty"`
	Errors        []string      `json:"errors,omitempty"`
	DryRun        bool          `json:"dry_run"`
	Duration      time.Duration `json:"duration"`
}

// BatchOrchestrator drives corpus-wide embedding generation. Documents are
// processed independently; one failure never aborts the run.
type BatchOrchestrator struct {
	docs        DocumentStore
	chunks      ChunkStore
	chunker     *ChunkingService
	embedder    *EmbeddingService
	resultCache *ComparisonResultCache
	metrics     *telemetry.Metrics

	concurrency int
	throttle    *rate.Limiter
}

func NewBatchOrchestrator(
	docs DocumentStore,
	chunks ChunkStore,
	chunker *ChunkingService,
	embedder *EmbeddingService,
	resultCache *ComparisonResultCache,
	metrics *telemetry.Metrics,
	concurrency int,
	docsPerSecond float64,
) *BatchOrchestrator {
	if concurrency <= 0 {
		concurrency = 4
	}
	limit := rate.Limit(docsPerSecond)
	if docsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &BatchOrchestrator{
		docs:        docs,
		chunks:      chunks,
		chunker:     chunker,
		embedder:    embedder,
		resultCache: resultCache,
		metrics:     metrics,
		concurrency: concurrency,
		throttle:    rate.NewLimiter(limit, 1),
	}
}

// Run embeds every document that needs it. Cancellation of ctx stops the run
// cooperatively; documents already finished stay finished.
func (o *BatchOrchestrator) Run(ctx context.Context, opts BatchOptions) (*BatchReport, error) {
	start := time.Now()

	// List the full corpus so documents already embedded are counted as
	// skipped rather than silently filtered out of the report.
	docs, err := o.docs.ListDocuments(ctx, opts.Limit, false)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	report := &BatchReport{DryRun: opts.DryRun}
	var pending []models.JobDocument
	for _, doc := range docs {
		if doc.HasEmbeddings && !opts.Force {
			report.Skipped++
			continue
		}
		pending = append(pending, doc)
	}
	report.Planned = len(pending)

	if opts.DryRun {
		pendingChunks, err := o.chunks.ChunksMissingEmbeddings(ctx, 0)
		if err != nil {
			return nil, fmt.Errorf("counting unembedded chunks: %w", err)
		}
		report.PendingChunks = len(pendingChunks)
		report.Duration = time.Since(start)
		o.metrics.RecordBatchRun(report.Duration.Seconds(), true)
		logger.Info("batch dry run",
			"planned", report.Planned,
			"skipped", report.Skipped,
			"pending_chunks", report.PendingChunks,
		)
		return report, nil
	}

	concurrency := o.concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range pending {
		doc := pending[i]
		g.Go(func() error {
			if err := o.throttle.Wait(gctx); err != nil {
				return err
			}
			err := o.processDocument(gctx, &doc, opts.Force)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", doc.ID.Hex(), err))
				logger.Error("batch document failed", "document_id", doc.ID.Hex(), "error", err)
				return nil
			}
			report.Processed++
			return nil
		})
	}

	// The only error errgroup can surface here is context cancellation.
	runErr := g.Wait()

	report.Duration = time.Since(start)
	o.metrics.RecordBatchRun(report.Duration.Seconds(), false)
	logger.Info("batch run complete",
		"processed", report.Processed,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.Duration.String(),
	)
	if runErr != nil {
		return report, runErr
	}
	return report, nil
}

// RunDocument embeds a single document, used by the queue handler.
func (o *BatchOrchestrator) RunDocument(ctx context.Context, id primitive.ObjectID, force bool) error {
	doc, err := o.docs.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.HasEmbeddings && !force {
		return nil
	}
	return o.processDocument(ctx, doc, force)
}

// processDocument chunks, embeds in chunk order, and replaces the stored
// chunk set atomically from the reader's perspective.
func (o *BatchOrchestrator) processDocument(ctx context.Context, doc *models.JobDocument, force bool) error {
	chunks, err := o.chunker.ChunkDocument(doc)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return utils.NewValidationError("document", "has no text to embed")
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	vectors := o.embedder.GenerateMany(ctx, texts)
	if err := ctx.Err(); err != nil {
		return err
	}

	allEmbedded := true
	for i := range chunks {
		if vectors[i] == nil {
			allEmbedded = false
			continue
		}
		chunks[i].Vector = vectors[i]
	}

	if err := o.chunks.ReplaceDocumentChunks(ctx, doc.ID, chunks); err != nil {
		return err
	}
	if err := o.docs.SetHasEmbeddings(ctx, doc.ID, allEmbedded); err != nil {
		return err
	}
	if force && o.resultCache != nil {
		o.resultCache.Invalidate(ctx, doc.ID.Hex())
	}
	if !allEmbedded {
		return fmt.Errorf("embedded %d of %d chunks, remainder left unembedded", countEmbedded(vectors), len(chunks))
	}
	return nil
}

func countEmbedded(vectors [][]float32) int {
	n := 0
	for _, v := range vectors {
		if v != nil {
			n++
		}
	}
	return n
}
