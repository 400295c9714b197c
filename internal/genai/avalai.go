package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Avalai serves an OpenAI-compatible API.
const (
	DefaultAvalaiBaseURL = "https://api.avalai.ir/v1"
	DefaultAvalaiModel   = "gpt-4o-mini"
)

// AvalaiConfig configures the Avalai provider.
type AvalaiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// AvalaiProvider calls Avalai through the OpenAI SDK.
type AvalaiProvider struct {
	chat        chatService
	model       string
	temperature float64
}

// NewAvalaiProvider creates an Avalai provider from cfg.
func NewAvalaiProvider(cfg AvalaiConfig) (*AvalaiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AVALAI_API_KEY not set")
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey), option.WithBaseURL(AvalaiBaseURL(cfg.BaseURL)))

	model := cfg.Model
	if model == "" {
		model = DefaultAvalaiModel
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.4
	}
	slog.Debug("genai.NewAvalaiProvider: provider ready", "model", model, "baseURL", AvalaiBaseURL(cfg.BaseURL))
	return &AvalaiProvider{chat: &cli.Chat.Completions, model: model, temperature: temp}, nil
}

// AvalaiBaseURL returns baseURL or the public Avalai endpoint when empty.
func AvalaiBaseURL(baseURL string) string {
	if baseURL == "" {
		return DefaultAvalaiBaseURL
	}
	return baseURL
}

// Name implements Provider.
func (a *AvalaiProvider) Name() ProviderName { return ProviderAvalai }

// DefaultModel implements Provider.
func (a *AvalaiProvider) DefaultModel() string { return a.model }

// Generate implements Provider.
func (a *AvalaiProvider) Generate(ctx context.Context, p Prompt) (string, error) {
	model := a.model
	if p.Model != "" {
		model = p.Model
	}

	var user openai.ChatCompletionMessageParamUnion
	if len(p.Media) == 0 {
		user = openai.UserMessage(p.Text)
	} else {
		parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(p.Text)}
		for _, m := range p.Media {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(m),
			}))
		}
		user = openai.UserMessage(parts)
	}

	resp, err := a.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    []openai.ChatCompletionMessageParamUnion{user},
		Temperature: openai.Float(a.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("avalai chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("avalai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func dataURL(m Media) string {
	return "data:" + m.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(m.Data)
}
