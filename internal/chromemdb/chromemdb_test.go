package chromemdb

import (
	"context"
	"strings"
	"testing"

	"pdfchat/internal/models"
)

// keywordEmbed maps text onto three axes so nearest neighbours are predictable.
func keywordEmbed(_ context.Context, text string) ([]float32, error) {
	v := []float32{0.01, 0.01, 0.01}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "cat") {
		v[0] = 1
	}
	if strings.Contains(lower, "dog") {
		v[1] = 1
	}
	if strings.Contains(lower, "bird") {
		v[2] = 1
	}
	return v, nil
}

func indexed(t *testing.T, texts ...string) *VectorDBManager {
	t.Helper()
	m, err := NewVectorDBManager("test", keywordEmbed)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	var chunks []models.ChunkEmbedding
	for i, text := range texts {
		v, _ := keywordEmbed(context.Background(), text)
		chunks = append(chunks, models.ChunkEmbedding{
			Content:        text,
			Embedding:      v,
			SourceFilename: "doc.pdf",
			PageNumber:     i + 1,
			ChunkID:        1,
		})
	}
	if err := m.CreateDocs(context.Background(), chunks); err != nil {
		t.Fatalf("create docs: %v", err)
	}
	return m
}

func TestSearch_NearestFirst(t *testing.T) {
	m := indexed(t, "a cat sat", "a dog ran", "a bird flew")

	results, err := m.Search(context.Background(), "where is the dog", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	got := results[0].Chunk
	if got.Content != "a dog ran" || got.PageNumber != 2 || got.ChunkID != 1 || got.SourceFilename != "doc.pdf" {
		t.Errorf("unexpected chunk: %+v", got)
	}
}

func TestSearch_ClampsToCollectionSize(t *testing.T) {
	m := indexed(t, "a cat sat", "a dog ran")

	results, err := m.Search(context.Background(), "cat", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	m := indexed(t)
	results, err := m.Search(context.Background(), "cat", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	m := indexed(t, "a cat sat")
	if _, err := m.Search(context.Background(), "", 3); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestReset(t *testing.T) {
	m := indexed(t, "a cat sat", "a dog ran")
	if err := m.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("expected empty collection, got %d", m.Count())
	}
}
