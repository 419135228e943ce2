package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdfchat/internal/config"
	"pdfchat/internal/credentials"
	"pdfchat/internal/embedding"
	"pdfchat/internal/llmservice"
	"pdfchat/internal/rag"
	"pdfchat/internal/session"
	"pdfchat/internal/web"
)

const configFilePath = "./configs/config.yaml"

func main() {
	setupLogger(zerolog.DebugLevel)

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the document file (command line mode)")
	query := flag.String("query", "", "Question to ask about the document (command line mode)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	pipeline, err := newPipeline(cfg, credentialProviders(cfg))
	if errors.Is(err, credentials.ErrMissingCredential) {
		fmt.Fprintln(os.Stderr, credentials.MissingKeyMessage(cfg.Secrets.KeyName, cfg.Secrets.File))
		log.Fatal().Err(err).Msg("API key not found")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing pipeline")
	}

	if *filePath != "" || *query != "" {
		if *filePath == "" || *query == "" {
			log.Fatal().Msg("Command line mode needs both -file and -query")
		}
		if err := askOnce(context.Background(), pipeline, *filePath, *query); err != nil {
			log.Fatal().Err(err).Msg("Error answering query")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := web.NewServer(pipeline, session.NewStore(cfg.Server.SessionTTL), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating server")
	}
	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}

func setupLogger(level zerolog.Level) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// credentialProviders lists the secret store before the environment, so a
// configured secret wins over a stray variable.
func credentialProviders(cfg *config.Config) []credentials.Provider {
	return []credentials.Provider{
		credentials.SecretsFileProvider{Path: cfg.Secrets.File},
		credentials.EnvProvider{},
	}
}

// newPipeline resolves the API key before building anything else.
func newPipeline(cfg *config.Config, providers []credentials.Provider) (*rag.RAG, error) {
	key, err := credentials.Resolve(cfg.Secrets.KeyName, providers...)
	if err != nil {
		return nil, err
	}
	cfg.EmbedLLM.Key = key
	cfg.ChatLLM.Key = key

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	llm, err := llmservice.NewChatModel(&cfg.ChatLLM)
	if err != nil {
		return nil, err
	}
	return rag.NewRAG(embedder, llm, cfg), nil
}

func askOnce(ctx context.Context, pipeline *rag.RAG, filePath, query string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	sess := session.New("cli")
	if _, err := pipeline.Ingest(ctx, sess, filepath.Base(filePath), f); err != nil {
		return err
	}
	turn, err := pipeline.Ask(ctx, sess, query)
	if err != nil {
		return err
	}
	if turn == nil {
		return errors.New("empty query")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", turn.Question)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, src := range turn.Sources {
		fmt.Printf("[%s p.%d #%d %.3f] %s\n\n", src.Chunk.SourceFilename, src.Chunk.PageNumber, src.Chunk.ChunkID, src.Similarity, src.Chunk.Content)
	}

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", turn.Answer)
	return nil
}
