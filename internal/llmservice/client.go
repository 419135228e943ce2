package llmservice

import (
	"context"
	"fmt"
	"strings"

	"pdfchat/internal/config"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// NewChatModel creates an OpenAI-compatible chat model.
func NewChatModel(llmConfig *config.LLMConfig) (*openai.LLM, error) {
	log.Debug().Str("base_url", llmConfig.BaseURL).Str("model", llmConfig.Model).Msg("Creating chat model")
	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init chat client: %w", err)
	}
	return llm, nil
}

// GenerateContent sends a single completion request and returns the text of
// the first choice. An empty string means the model returned no answer.
func GenerateContent(ctx context.Context, llm llms.Model, llmConfig *config.LLMConfig, messages []llms.MessageContent) (string, error) {
	attempts := llmConfig.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}

	res, err := retry.DoWithData(
		func() (*llms.ContentResponse, error) {
			return llm.GenerateContent(ctx, messages, llms.WithTemperature(llmConfig.Temperature))
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("Completion request failed, retrying")
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if res == nil || len(res.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(res.Choices[0].Content), nil
}

// HumanMessage wraps prompt as a single human turn.
func HumanMessage(prompt string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}
}
