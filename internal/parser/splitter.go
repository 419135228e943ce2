package parser

import (
	"fmt"
	"strings"

	"pdfchat/internal/models"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	metadataPage   = "page"
	metadataSource = "source"
)

// Split cuts pages into overlapping windows of at most chunkSize characters,
// preferring paragraph, line and word boundaries. Chunk ids restart at 1 on
// every page.
func Split(pages []models.Page, chunkSize, chunkOverlap int) ([]models.Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	docs := make([]schema.Document, 0, len(pages))
	for _, p := range pages {
		docs = append(docs, schema.Document{
			PageContent: p.Content,
			Metadata: map[string]any{
				metadataPage:   p.PageNumber,
				metadataSource: p.Source,
			},
		})
	}

	split, err := textsplitter.SplitDocuments(splitter, docs)
	if err != nil {
		return nil, fmt.Errorf("split documents: %w", err)
	}

	chunkIDs := make(map[int]int)
	chunks := make([]models.Chunk, 0, len(split))
	for _, doc := range split {
		content := strings.TrimSpace(doc.PageContent)
		if content == "" {
			continue
		}
		page, _ := doc.Metadata[metadataPage].(int)
		source, _ := doc.Metadata[metadataSource].(string)
		chunkIDs[page]++
		chunks = append(chunks, models.Chunk{
			Content:        content,
			PageNumber:     page,
			ChunkID:        chunkIDs[page],
			SourceFilename: source,
		})
	}
	return chunks, nil
}
