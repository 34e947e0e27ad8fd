package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"govjobs-semantic-platform/internal/logger"
	"govjobs-semantic-platform/services"
)

const (
	TaskEmbedDocument  = "embeddings:document"
	TaskBackfillCorpus = "embeddings:backfill"
)

type EmbedDocumentPayload struct {
	DocumentID string `json:"document_id"`
	Force      bool   `json:"force"`
}

type BackfillPayload struct {
	Limit int64 `json:"limit"`
	Force bool  `json:"force"`
}

// Task creators
func NewEmbedDocumentTask(documentID string, force bool) (*asynq.Task, error) {
	payload, err := json.Marshal(EmbedDocumentPayload{
		DocumentID: documentID,
		Force:      force,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskEmbedDocument,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("default"),
	), nil
}

func NewBackfillTask(limit int64, force bool) (*asynq.Task, error) {
	payload, err := json.Marshal(BackfillPayload{Limit: limit, Force: force})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskBackfillCorpus,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(2*time.Hour),
		asynq.Queue("critical"),
	), nil
}

// Task handlers
type TaskProcessor struct {
	orchestrator *services.BatchOrchestrator
}

func NewTaskProcessor(orchestrator *services.BatchOrchestrator) *TaskProcessor {
	return &TaskProcessor{orchestrator: orchestrator}
}

func (p *TaskProcessor) HandleEmbedDocument(ctx context.Context, t *asynq.Task) error {
	var payload EmbedDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	id, err := primitive.ObjectIDFromHex(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("bad document id %q: %v: %w", payload.DocumentID, err, asynq.SkipRetry)
	}

	logger.Info("embedding document", "document_id", payload.DocumentID, "force", payload.Force)
	return p.orchestrator.RunDocument(ctx, id, payload.Force)
}

func (p *TaskProcessor) HandleBackfill(ctx context.Context, t *asynq.Task) error {
	var payload BackfillPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	report, err := p.orchestrator.Run(ctx, services.BatchOptions{
		Limit: payload.Limit,
		Force: payload.Force,
	})
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		// Surface partial failure so asynq retries the remainder. Documents
		// already embedded are skipped on the next attempt.
		return fmt.Errorf("backfill finished with %d failures of %d planned", report.Failed, report.Planned)
	}
	return nil
}
