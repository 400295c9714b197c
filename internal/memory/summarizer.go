package memory

import (
	"context"
	"errors"
	"strings"

	"github.com/aiamooz/amooz-tutor/internal/genai"
	"github.com/aiamooz/amooz-tutor/internal/models"
	"github.com/aiamooz/amooz-tutor/internal/prompts"
)

// Summarizer folds discarded messages into the previous summary.
type Summarizer interface {
	Summarize(ctx context.Context, previous string, msgs []models.Message) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, previous string, msgs []models.Message) (string, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, previous string, msgs []models.Message) (string, error) {
	return f(ctx, previous, msgs)
}

// TextGenerator is the part of the LLM client the summarizer needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, req genai.Request) (genai.LLMResult, error)
}

// LLMSummarizer summarizes with the memory_summarizer prompt.
type LLMSummarizer struct {
	llm TextGenerator
}

// NewLLMSummarizer creates a summarizer backed by llm.
func NewLLMSummarizer(llm TextGenerator) *LLMSummarizer {
	return &LLMSummarizer{llm: llm}
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, previous string, msgs []models.Message) (string, error) {
	if s.llm == nil {
		return "", errors.New("summarizer has no llm")
	}
	if strings.TrimSpace(previous) == "" {
		previous = "(none)"
	}
	res, err := s.llm.GenerateText(ctx, genai.Request{
		Feature:  prompts.FeatureMemorySummarizer,
		Vars:     map[string]string{"previous_summary": previous},
		Contents: models.RenderMessages(msgs),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}
