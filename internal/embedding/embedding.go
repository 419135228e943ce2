package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"pdfchat/internal/config"
	"pdfchat/internal/models"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewEmbedder creates an OpenAI-compatible embedder.
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating embedder")

	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithEmbeddingModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return embedder, nil
}

// EmbedChunks embeds every chunk in one batched call.
func EmbedChunks(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk, attempts uint) ([]models.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks generated from content")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := retry.DoWithData(
		func() ([][]float32, error) {
			return embedder.EmbedDocuments(ctx, texts)
		},
		retryOptions(ctx, attempts)...,
	)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	chunkEmbeddings := make([]models.ChunkEmbedding, 0, len(chunks))
	for i, chunk := range chunks {
		chunkEmbeddings = append(chunkEmbeddings, models.ChunkEmbedding{
			Content:        chunk.Content,
			Embedding:      vectors[i],
			SourceFilename: chunk.SourceFilename,
			PageNumber:     chunk.PageNumber,
			ChunkID:        chunk.ChunkID,
		})
	}
	log.Debug().Int("chunks", len(chunkEmbeddings)).Msg("Embedded chunks")
	return chunkEmbeddings, nil
}

// EmbedQuery embeds a single search query.
func EmbedQuery(ctx context.Context, embedder embeddings.Embedder, query string, attempts uint) ([]float32, error) {
	return retry.DoWithData(
		func() ([]float32, error) {
			return embedder.EmbedQuery(ctx, query)
		},
		retryOptions(ctx, attempts)...,
	)
}

func retryOptions(ctx context.Context, attempts uint) []retry.Option {
	if attempts == 0 {
		attempts = 1
	}
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("Embedding request failed, retrying")
		}),
	}
}
