package llmservice

import (
	"context"
	"errors"
	"testing"

	"pdfchat/internal/config"

	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	responses []*llms.ContentResponse
	errs      []error
	calls     int
	opts      llms.CallOptions
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, o := range options {
		o(&m.opts)
	}
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return &llms.ContentResponse{}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func answer(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func TestGenerateContent_FirstChoice(t *testing.T) {
	m := &fakeModel{responses: []*llms.ContentResponse{answer("  forty two \n")}}
	cfg := &config.LLMConfig{Temperature: 0.3}

	got, err := GenerateContent(context.Background(), m, cfg, HumanMessage("q"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "forty two" {
		t.Errorf("unexpected answer %q", got)
	}
	if m.opts.Temperature != 0.3 {
		t.Errorf("temperature not forwarded: %v", m.opts.Temperature)
	}
}

func TestGenerateContent_NoChoices(t *testing.T) {
	got, err := GenerateContent(context.Background(), &fakeModel{}, &config.LLMConfig{}, HumanMessage("q"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty answer, got %q", got)
	}
}

func TestGenerateContent_ErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	m := &fakeModel{errs: []error{boom}}
	_, err := GenerateContent(context.Background(), m, &config.LLMConfig{RetryAttempts: 1}, HumanMessage("q"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if m.calls != 1 {
		t.Errorf("expected 1 call, got %d", m.calls)
	}
}

func TestGenerateContent_Retries(t *testing.T) {
	m := &fakeModel{
		errs:      []error{errors.New("503")},
		responses: []*llms.ContentResponse{nil, answer("ok")},
	}
	got, err := GenerateContent(context.Background(), m, &config.LLMConfig{RetryAttempts: 2}, HumanMessage("q"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "ok" {
		t.Errorf("unexpected answer %q", got)
	}
}
