package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"pdfchat/internal/chromemdb"
	"pdfchat/internal/config"
	"pdfchat/internal/embedding"
	"pdfchat/internal/llmservice"
	"pdfchat/internal/models"
	"pdfchat/internal/parser"
	"pdfchat/internal/session"
)

var ErrNoDocument = errors.New("no document uploaded")

var (
	condensePrompt = prompts.NewPromptTemplate(models.CondensePromptTemplate, []string{"chat_history", "question"})
	qaSystemPrompt = prompts.NewPromptTemplate(models.QASystemPromptTemplate, []string{"context"})
)

type RAG struct {
	embedder embeddings.Embedder
	llm      llms.Model
	cfg      *config.Config

	// every upload overwrites the same file
	uploadMu sync.Mutex
}

func NewRAG(embedder embeddings.Embedder, llm llms.Model, cfg *config.Config) *RAG {
	return &RAG{embedder: embedder, llm: llm, cfg: cfg}
}

// Ingest stores the uploaded document, indexes it for sess and returns the
// number of chunks indexed. Uploading a document with a different name than
// the previous one clears the session history.
func (r *RAG) Ingest(ctx context.Context, sess *session.Session, filename string, data io.Reader) (int, error) {
	name := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !r.cfg.RAG.AllowsExtension(ext) {
		return 0, fmt.Errorf("%w: %s", parser.ErrUnsupportedFormat, ext)
	}

	changed := sess.AttachDocument(name)
	if changed {
		log.Info().Str("session", sess.ID).Str("document", name).Msg("New document, history cleared")
	}

	n, err := r.index(ctx, sess, name, ext, data)
	if err != nil {
		if changed {
			// the old index belongs to the previous document
			sess.SetIndex(nil)
		}
		return 0, err
	}
	return n, nil
}

func (r *RAG) index(ctx context.Context, sess *session.Session, name, ext string, data io.Reader) (int, error) {
	r.uploadMu.Lock()
	path, err := r.saveUpload(ext, data)
	if err != nil {
		r.uploadMu.Unlock()
		return 0, err
	}
	pages, err := parser.ParseFile(path)
	r.uploadMu.Unlock()
	if err != nil {
		return 0, err
	}

	for i := range pages {
		pages[i].Source = name
	}
	chunks, err := parser.Split(pages, r.cfg.RAG.ChunkSize, r.cfg.RAG.ChunkOverlap)
	if err != nil {
		return 0, err
	}

	embedded, err := embedding.EmbedChunks(ctx, r.embedder, chunks, r.cfg.EmbedLLM.RetryAttempts)
	if err != nil {
		return 0, err
	}

	index, err := r.freshIndex(sess)
	if err != nil {
		return 0, err
	}
	if err := index.CreateDocs(ctx, embedded); err != nil {
		return 0, err
	}

	log.Info().
		Str("session", sess.ID).
		Str("document", name).
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Msg("Document indexed")
	return len(chunks), nil
}

// Ask answers question against the session's document, conditioning on all
// prior turns. A blank question is ignored: it returns nil without touching
// the index or the history.
func (r *RAG) Ask(ctx context.Context, sess *session.Session, question string) (*models.Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil
	}

	index := sess.Index()
	if index == nil {
		return nil, ErrNoDocument
	}

	history := sess.History()
	standalone, err := r.condenseQuestion(ctx, question, history)
	if err != nil {
		return nil, err
	}

	results, err := index.Search(ctx, standalone, r.cfg.RAG.TopK)
	if err != nil {
		return nil, err
	}

	answer, err := r.answer(ctx, standalone, results)
	if err != nil {
		return nil, err
	}
	if answer == "" {
		answer = models.NoAnswer
	}

	turn := models.Turn{Question: question, Answer: answer, Sources: results}
	sess.Append(turn)
	log.Debug().Str("session", sess.ID).Int("sources", len(results)).Int("turns", len(history)+1).Msg("Answered question")
	return &turn, nil
}

func (r *RAG) saveUpload(ext string, data io.Reader) (string, error) {
	path := strings.TrimSuffix(r.cfg.RAG.UploadPath, filepath.Ext(r.cfg.RAG.UploadPath)) + ext
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

func (r *RAG) freshIndex(sess *session.Session) (*chromemdb.VectorDBManager, error) {
	if index := sess.Index(); index != nil {
		return index, index.Reset()
	}
	index, err := chromemdb.NewVectorDBManager(r.cfg.RAG.CollectionName, r.embedQuery)
	if err != nil {
		return nil, err
	}
	sess.SetIndex(index)
	return index, nil
}

func (r *RAG) embedQuery(ctx context.Context, text string) ([]float32, error) {
	return embedding.EmbedQuery(ctx, r.embedder, text, r.cfg.EmbedLLM.RetryAttempts)
}

// condenseQuestion folds the history into a standalone question. Without
// history the question is used as-is.
func (r *RAG) condenseQuestion(ctx context.Context, question string, history []models.Turn) (string, error) {
	if len(history) == 0 {
		return question, nil
	}
	prompt, err := condensePrompt.Format(map[string]any{
		"chat_history": formatHistory(history),
		"question":     question,
	})
	if err != nil {
		return "", fmt.Errorf("format condense prompt: %w", err)
	}
	standalone, err := llmservice.GenerateContent(ctx, r.llm, &r.cfg.ChatLLM, llmservice.HumanMessage(prompt))
	if err != nil {
		return "", fmt.Errorf("condense question: %w", err)
	}
	if standalone == "" {
		return question, nil
	}
	return standalone, nil
}

func (r *RAG) answer(ctx context.Context, question string, results []models.SearchResult) (string, error) {
	contexts := make([]string, len(results))
	for i, res := range results {
		contexts[i] = res.Chunk.Content
	}
	system, err := qaSystemPrompt.Format(map[string]any{
		"context": strings.Join(contexts, models.ContextSeparator),
	})
	if err != nil {
		return "", fmt.Errorf("format qa prompt: %w", err)
	}

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, question),
	}
	return llmservice.GenerateContent(ctx, r.llm, &r.cfg.ChatLLM, messages)
}

func formatHistory(history []models.Turn) string {
	var sb strings.Builder
	for _, turn := range history {
		sb.WriteString("\nHuman: ")
		sb.WriteString(turn.Question)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(turn.Answer)
	}
	return sb.String()
}
