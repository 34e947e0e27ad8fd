package services

import (
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"govjobs-semantic-platform/models"
	"govjobs-semantic-platform/utils"
)

func TestChunkWordsCoversAllWords(t *testing.T) {
	words := make([]string, 0, 103)
	for i := 0; i < 103; i++ {
		words = append(words, "w")
	}
	text := strings.Join(words, " ")

	chunks, err := ChunkWords(text, 25, 5)
	if err != nil {
		t.Fatalf("ChunkWords: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	// Every chunk respects the size bound and consecutive chunks overlap.
	total := 0
	for i, chunk := range chunks {
		n := len(strings.Fields(chunk))
		if n > 25 {
			t.Errorf("chunk %d has %d words, want <= 25", i, n)
		}
		total += n
	}
	// Step is 20, so each chunk after the first re-covers 5 words.
	wantTotal := 103 + (len(chunks)-1)*5
	if total != wantTotal {
		t.Errorf("total words across chunks = %d, want %d", total, wantTotal)
	}
}

func TestChunkWordsShortInputSingleChunk(t *testing.T) {
	chunks, err := ChunkWords("just a few words", 250, 50)
	if err != nil {
		t.Fatalf("ChunkWords: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0] != "just a few words" {
		t.Errorf("chunk = %q", chunks[0])
	}
}

func TestChunkWordsEmptyInput(t *testing.T) {
	chunks, err := ChunkWords("   \n\t ", 250, 50)
	if err != nil {
		t.Fatalf("ChunkWords: %v", err)
	}
	if chunks != nil {
		t.Errorf("got %v, want nil", chunks)
	}
}

func TestChunkWordsInvalidConfig(t *testing.T) {
	cases := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ChunkWords("some text", tc.chunkSize, tc.overlap)
			if !utils.IsValidation(err) {
				t.Errorf("ChunkWords(%d, %d) error = %v, want ValidationError", tc.chunkSize, tc.overlap, err)
			}
		})
	}
}

func TestChunkDocumentSequentialIndexAcrossSections(t *testing.T) {
	cs, err := NewChunkingService(5, 1)
	if err != nil {
		t.Fatalf("NewChunkingService: %v", err)
	}

	doc := &models.JobDocument{
		ID:             primitive.NewObjectID(),
		Language:       "en",
		Classification: "AS-04",
		Sections: []models.Section{
			{SectionID: "s1", Title: "Key Activities", Text: "one two three four five six seven"},
			{SectionID: "s2", Title: "Requirements", Text: "eight nine ten"},
		},
	}

	chunks, err := cs.ChunkDocument(doc)
	if err != nil {
		t.Fatalf("ChunkDocument: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}

	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
		if c.DocumentID != doc.ID {
			t.Errorf("chunk %d document id = %v", i, c.DocumentID)
		}
		if c.Language != "en" || c.Classification != "AS-04" {
			t.Errorf("chunk %d missing denormalized fields: %+v", i, c)
		}
		if c.ChunkID == "" {
			t.Errorf("chunk %d has empty chunk id", i)
		}
		if c.HasVector() {
			t.Errorf("chunk %d has a vector before embedding", i)
		}
	}

	last := chunks[len(chunks)-1]
	if last.SectionID != "s2" {
		t.Errorf("last chunk section = %q, want s2", last.SectionID)
	}
}

func TestNewChunkingServiceRejectsBadConfig(t *testing.T) {
	if _, err := NewChunkingService(50, 50); !utils.IsValidation(err) {
		t.Errorf("error = %v, want ValidationError", err)
	}
}
