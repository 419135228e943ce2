package models

// Page is one page-level text unit extracted from a document.
type Page struct {
	Content    string
	PageNumber int
	Source     string
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content        string
	PageNumber     int
	ChunkID        int
	SourceFilename string
}

type ChunkEmbedding struct {
	Content        string
	Embedding      []float32
	SourceFilename string
	PageNumber     int
	ChunkID        int
}

type SearchResult struct {
	Chunk      Chunk
	Similarity float32
}

// Turn is a single question/answer pair of the conversation.
type Turn struct {
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Sources  []SearchResult `json:"-"`
}

const (
	ContextSeparator = "\n\n"
	NoAnswer         = "No answer returned."
)

var (
	// CondensePromptTemplate rewrites a follow-up into a standalone question.
	CondensePromptTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
{{.chat_history}}
Follow Up Input: {{.question}}
Standalone question:`

	QASystemPromptTemplate = `Use the following pieces of context to answer the user's question.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
----------------
{{.context}}`
)
