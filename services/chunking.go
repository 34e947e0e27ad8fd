package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"govjobs-semantic-platform/models"
	"govjobs-semantic-platform/utils"
)

// ChunkWords splits text into overlapping word windows of chunkSize words
// with a step of chunkSize-overlap. Overlap must be strictly smaller than the
// chunk size or the step becomes non-positive. Empty input yields no chunks.
// Trailing partial windows are kept so the chunks cover the whole input.
func ChunkWords(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, utils.NewValidationError("chunk_size", "must be positive")
	}
	if overlap < 0 {
		return nil, utils.NewValidationError("overlap", "must not be negative")
	}
	if overlap >= chunkSize {
		return nil, utils.NewValidationError("overlap", "must be smaller than chunk_size")
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := chunkSize - overlap
	chunks := make([]string, 0, (len(words)+step-1)/step)
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks, nil
}

// ChunkingService builds ContentChunk rows for job documents.
type ChunkingService struct {
	chunkSize int
	overlap   int
}

// NewChunkingService validates the window configuration once at construction.
func NewChunkingService(chunkSize, overlap int) (*ChunkingService, error) {
	if _, err := ChunkWords("sample", chunkSize, overlap); err != nil {
		return nil, err
	}
	return &ChunkingService{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkDocument splits a document's sections into ContentChunks. The chunk
// index is sequential across the whole document; section ids are carried so
// comparisons can report per-section breakdowns. Vectors are left unset, to
// be populated by the embedding pipeline.
func (cs *ChunkingService) ChunkDocument(doc *models.JobDocument) ([]models.ContentChunk, error) {
	now := time.Now()
	var out []models.ContentChunk
	chunkIndex := 0

	appendChunks := func(sectionID, text string) error {
		pieces, err := ChunkWords(text, cs.chunkSize, cs.overlap)
		if err != nil {
			return err
		}
		for _, piece := range pieces {
			out = append(out, models.ContentChunk{
				DocumentID:     doc.ID,
				SectionID:      sectionID,
				ChunkID:        uuid.NewString(),
				ChunkIndex:     chunkIndex,
				Text:           piece,
				CharCount:      len(piece),
				WordCount:      len(strings.Fields(piece)),
				Language:       doc.Language,
				Classification: doc.Classification,
				CreatedAt:      now,
			})
			chunkIndex++
		}
		return nil
	}

	if len(doc.Sections) > 0 {
		for _, section := range doc.Sections {
			if err := appendChunks(section.SectionID, section.Text); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	if err := appendChunks("", doc.FullText()); err != nil {
		return nil, err
	}
	return out, nil
}
