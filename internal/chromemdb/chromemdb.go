package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdfchat/internal/models"
)

const (
	metaSource  = "source"
	metaPage    = "page"
	metaChunkID = "chunk_id"
)

// VectorDBManager owns one in-memory chromem collection. The collection is
// rebuilt from scratch for every document and never persisted.
type VectorDBManager struct {
	mu             sync.RWMutex
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	embed          chromem.EmbeddingFunc
}

// NewVectorDBManager initializes an empty in-memory index. embed is used to
// embed query text at search time.
func NewVectorDBManager(collectionName string, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	m := &VectorDBManager{
		db:             chromem.NewDB(),
		collectionName: collectionName,
		embed:          embed,
	}
	c, err := m.db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return m, nil
}

// Reset drops every document by recreating the collection.
func (m *VectorDBManager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	c, err := m.db.CreateCollection(m.collectionName, nil, m.embed)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	m.collection = c
	return nil
}

// CreateDocs adds chunks with precomputed embeddings.
func (m *VectorDBManager) CreateDocs(ctx context.Context, chunks []models.ChunkEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for i, ce := range chunks {
		docs = append(docs, chromem.Document{
			ID:        fmt.Sprintf("%s-%d-%d-%d", ce.SourceFilename, ce.PageNumber, ce.ChunkID, i),
			Content:   ce.Content,
			Metadata:  createMetadata(ce),
			Embedding: ce.Embedding,
		})
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Str("collection", m.collectionName).Int("documents", len(docs)).Msg("Indexed documents")
	return nil
}

// Search returns up to k chunks nearest to query, best match first.
func (m *VectorDBManager) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query must be provided")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := min(k, m.collection.Count())
	if n <= 0 {
		return nil, nil
	}
	results, err := m.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, models.SearchResult{
			Chunk:      chunkFromResult(r),
			Similarity: r.Similarity,
		})
	}
	return out, nil
}

func (m *VectorDBManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collection.Count()
}

func createMetadata(ce models.ChunkEmbedding) map[string]string {
	return map[string]string{
		metaSource:  ce.SourceFilename,
		metaPage:    strconv.Itoa(ce.PageNumber),
		metaChunkID: strconv.Itoa(ce.ChunkID),
	}
}

func chunkFromResult(r chromem.Result) models.Chunk {
	page, _ := strconv.Atoi(r.Metadata[metaPage])
	chunkID, _ := strconv.Atoi(r.Metadata[metaChunkID])
	return models.Chunk{
		Content:        r.Content,
		PageNumber:     page,
		ChunkID:        chunkID,
		SourceFilename: r.Metadata[metaSource],
	}
}
