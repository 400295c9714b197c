package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	googleai "google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string
	// Backend is "gemini" (API key) or "vertex" (project + location).
	Backend     string
	Project     string
	Location    string
	Temperature float32
}

// contentGenerator is the subset of the Gemini SDK the provider needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*googleai.Content, config *googleai.GenerateContentConfig) (*googleai.GenerateContentResponse, error)
}

// GeminiProvider calls Google Gemini through the genai SDK.
type GeminiProvider struct {
	models      contentGenerator
	model       string
	temperature float32
}

// NewGeminiProvider creates a Gemini provider from cfg.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	clientCfg := &googleai.ClientConfig{}
	switch strings.ToLower(cfg.Backend) {
	case "vertex":
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("vertex backend needs project and location")
		}
		clientCfg.Backend = googleai.BackendVertexAI
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
	default:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set")
		}
		clientCfg.Backend = googleai.BackendGeminiAPI
		clientCfg.APIKey = cfg.APIKey
	}

	client, err := googleai.NewClient(ctx, clientCfg)
	if err != nil {
		slog.Error("genai.NewGeminiProvider: client creation failed", "error", err, "backend", cfg.Backend)
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.4
	}
	slog.Debug("genai.NewGeminiProvider: provider ready", "model", model, "backend", clientCfg.Backend)
	return &GeminiProvider{models: client.Models, model: model, temperature: temp}, nil
}

// Name implements Provider.
func (g *GeminiProvider) Name() ProviderName { return ProviderGemini }

// DefaultModel implements Provider.
func (g *GeminiProvider) DefaultModel() string { return g.model }

// Generate implements Provider.
func (g *GeminiProvider) Generate(ctx context.Context, p Prompt) (string, error) {
	parts := []*googleai.Part{googleai.NewPartFromText(p.Text)}
	for _, m := range p.Media {
		parts = append(parts, googleai.NewPartFromBytes(m.Data, m.MIMEType))
	}
	contents := []*googleai.Content{googleai.NewContentFromParts(parts, googleai.RoleUser)}

	model := g.model
	if p.Model != "" {
		model = p.Model
	}
	temp := g.temperature
	cfg := &googleai.GenerateContentConfig{Temperature: &temp}

	res, err := g.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return res.Text(), nil
}
