package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"pdfchat/internal/parser"
)

const (
	defaultAddr           = ":8501"
	defaultLogLevel       = "debug"
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultInferenceModel = "gpt-3.5-turbo"
	defaultChunkSize      = 5000
	defaultChunkOverlap   = 200
	defaultTopK           = 3
	defaultUploadPath     = "uploaded.pdf"
	defaultCollection     = "uploaded_document"
	defaultSessionTTL     = time.Hour
	defaultMaxUploadSize  = 32 << 20
	defaultRetryAttempts  = 1
	defaultSecretsFile    = ".secrets/secrets.yaml"
	defaultKeyName        = "OPENAI_API_KEY"
)

type Config struct {
	LogLevel string        `yaml:"log_level" env:"LOG_LEVEL"`
	Server   ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	EmbedLLM LLMConfig     `yaml:"embed_llm" envPrefix:"EMBED_"`
	ChatLLM  LLMConfig     `yaml:"chat_llm" envPrefix:"CHAT_"`
	RAG      RAGConfig     `yaml:"rag" envPrefix:"RAG_"`
	Secrets  SecretsConfig `yaml:"secrets" envPrefix:"SECRETS_"`
}

type ServerConfig struct {
	Addr          string        `yaml:"addr" env:"ADDR"`
	Title         string        `yaml:"title" env:"TITLE"`
	Subtitle      string        `yaml:"subtitle" env:"SUBTITLE"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
	MaxUploadSize int64         `yaml:"max_upload_size" env:"MAX_UPLOAD_SIZE"`
}

// LLMConfig describes one OpenAI-compatible endpoint. Key is filled from the
// resolved credential, never from the config file.
type LLMConfig struct {
	BaseURL       string  `yaml:"base_url" env:"BASE_URL"`
	Model         string  `yaml:"model" env:"MODEL"`
	Temperature   float64 `yaml:"temperature" env:"TEMPERATURE"`
	RetryAttempts uint    `yaml:"retry_attempts" env:"RETRY_ATTEMPTS"`
	Key           string  `yaml:"-"`
}

type RAGConfig struct {
	ChunkSize         int      `yaml:"chunk_size" env:"CHUNK_SIZE"`
	ChunkOverlap      int      `yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`
	TopK              int      `yaml:"top_k" env:"TOP_K"`
	UploadPath        string   `yaml:"upload_path" env:"UPLOAD_PATH"`
	CollectionName    string   `yaml:"collection_name" env:"COLLECTION_NAME"`
	AllowedExtensions []string `yaml:"allowed_extensions" env:"ALLOWED_EXTENSIONS" envSeparator:","`
}

type SecretsConfig struct {
	File    string `yaml:"file" env:"FILE"`
	KeyName string `yaml:"key_name" env:"KEY_NAME"`
}

// LoadConfig reads the yaml file at path, then applies PDFCHAT_* environment
// overrides. A missing file is not an error; defaults are used instead.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("path", path).Msg("Config file not found, using defaults")
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "PDFCHAT_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = "Chat with your PDF"
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = defaultSessionTTL
	}
	if cfg.Server.MaxUploadSize == 0 {
		cfg.Server.MaxUploadSize = defaultMaxUploadSize
	}

	applyLLMDefaults(&cfg.EmbedLLM, defaultEmbeddingModel)
	applyLLMDefaults(&cfg.ChatLLM, defaultInferenceModel)

	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = defaultChunkOverlap
		if cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
			cfg.RAG.ChunkOverlap = cfg.RAG.ChunkSize / 10
		}
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.UploadPath == "" {
		cfg.RAG.UploadPath = defaultUploadPath
	}
	if cfg.RAG.CollectionName == "" {
		cfg.RAG.CollectionName = defaultCollection
	}
	if len(cfg.RAG.AllowedExtensions) == 0 {
		cfg.RAG.AllowedExtensions = []string{".pdf"}
	}
	for i, ext := range cfg.RAG.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.RAG.AllowedExtensions[i] = ext
	}

	if cfg.Secrets.File == "" {
		cfg.Secrets.File = defaultSecretsFile
	}
	if cfg.Secrets.KeyName == "" {
		cfg.Secrets.KeyName = defaultKeyName
	}
}

func applyLLMDefaults(c *LLMConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
}

func validate(cfg *Config) error {
	var problems []string
	if cfg.RAG.ChunkSize < 1 {
		problems = append(problems, fmt.Sprintf("rag.chunk_size must be positive, got %d", cfg.RAG.ChunkSize))
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		problems = append(problems, fmt.Sprintf("rag.chunk_overlap must be in [0, chunk_size), got %d", cfg.RAG.ChunkOverlap))
	}
	if cfg.RAG.TopK < 1 {
		problems = append(problems, fmt.Sprintf("rag.top_k must be positive, got %d", cfg.RAG.TopK))
	}
	for _, ext := range cfg.RAG.AllowedExtensions {
		if !slices.Contains(parser.SupportedExtensions(), ext) {
			problems = append(problems, fmt.Sprintf("rag.allowed_extensions: no parser for %q", ext))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// AllowsExtension reports whether uploads with ext are accepted.
func (c *RAGConfig) AllowsExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range c.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}
