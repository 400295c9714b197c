// Package genai provides the provider-abstracted LLM client used by the tutor.
//
// A Client holds the Gemini and Avalai providers, picks the call order from
// its Mode, renders feature prompts from the prompt registry and can coerce
// replies into JSON objects, using itself as the json_repair repairer.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aiamooz/amooz-tutor/internal/coerce"
	"github.com/aiamooz/amooz-tutor/internal/prompts"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 30 * time.Second

var (
	// ErrLLMUnavailable is returned when every provider allowed by the mode failed.
	ErrLLMUnavailable = errors.New("llm unavailable")
	// ErrNoProviders is returned by NewClient when the mode has nothing to call.
	ErrNoProviders = errors.New("no llm provider configured for mode")
	// ErrEmptyResponse is reported by providers that answered with no text.
	ErrEmptyResponse = errors.New("provider returned empty text")
)

// Media is an inline attachment sent alongside the prompt text.
type Media struct {
	MIMEType string
	Data     []byte
}

// Prompt is what a provider receives.
type Prompt struct {
	Text  string
	Media []Media
	// Model overrides the provider's default model when set.
	Model string
}

// Provider is a concrete LLM backend.
type Provider interface {
	Name() ProviderName
	DefaultModel() string
	Generate(ctx context.Context, p Prompt) (string, error)
}

// LLMResult is the text of a call tagged with who answered it.
type LLMResult struct {
	Text     string       `json:"text"`
	Provider ProviderName `json:"provider"`
	Model    string       `json:"model"`
}

// Request describes one LLM call.
type Request struct {
	// Feature, when set, selects a prompt template; Contents fills its payload placeholder.
	Feature prompts.Feature
	Variant string
	Vars    map[string]string
	// Contents is the prompt itself when no feature is set.
	Contents string
	Media    []Media
	Model    string
	// SchemaHint describes the expected JSON shape for GenerateJSON.
	SchemaHint string
}

// Client routes requests to providers according to its mode.
type Client struct {
	mode      Mode
	gemini    Provider
	avalai    Provider
	registry  *prompts.Registry
	timeout   time.Duration
	debugMode bool
	stateDir  string
}

// NewClient builds a client from options. The mode must have at least one provider to call.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{mode: ModeAuto, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		r, err := prompts.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("failed to load prompt registry: %w", err)
		}
		c.registry = r
	}
	if len(c.chain()) == 0 {
		slog.Error("genai.NewClient: no provider for mode", "mode", c.mode, "gemini", c.gemini != nil, "avalai", c.avalai != nil)
		return nil, fmt.Errorf("%w %s", ErrNoProviders, c.mode)
	}
	slog.Debug("genai.NewClient: client ready", "mode", c.mode, "gemini", c.gemini != nil, "avalai", c.avalai != nil, "timeout", c.timeout, "debug", c.debugMode)
	return c, nil
}

// Mode returns the configured provider mode.
func (c *Client) Mode() Mode {
	return c.mode
}

// Registry returns the prompt registry the client renders features with.
func (c *Client) Registry() *prompts.Registry {
	return c.registry
}

// chain lists providers in call order for the configured mode.
func (c *Client) chain() []Provider {
	var out []Provider
	switch c.mode {
	case ModeGemini:
		if c.gemini != nil {
			out = append(out, c.gemini)
		}
	case ModeAvalai:
		if c.avalai != nil {
			out = append(out, c.avalai)
		}
	default:
		if c.gemini != nil {
			out = append(out, c.gemini)
		}
		if c.avalai != nil {
			out = append(out, c.avalai)
		}
	}
	return out
}

// GenerateText renders the request and returns the first non-empty provider answer.
func (c *Client) GenerateText(ctx context.Context, req Request) (LLMResult, error) {
	text, err := c.render(req)
	if err != nil {
		return LLMResult{}, err
	}

	prompt := Prompt{Text: text, Media: req.Media, Model: req.Model}
	var failures []string
	for _, p := range c.chain() {
		model := p.DefaultModel()
		if req.Model != "" {
			model = req.Model
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		out, err := p.Generate(callCtx, prompt)
		cancel()
		if err == nil && strings.TrimSpace(out) == "" {
			err = ErrEmptyResponse
		}
		c.writeDebugLog("GenerateText", p.Name(), model, req, text, out, err)

		if err != nil {
			slog.Warn("genai.GenerateText: provider failed", "provider", p.Name(), "model", model, "feature", req.Feature, "error", err, "elapsed", time.Since(start))
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}
		slog.Debug("genai.GenerateText: provider answered", "provider", p.Name(), "model", model, "feature", req.Feature, "responseLength", len(out), "elapsed", time.Since(start))
		return LLMResult{Text: out, Provider: p.Name(), Model: model}, nil
	}

	return LLMResult{}, fmt.Errorf("%w (%s): %s", ErrLLMUnavailable, c.mode, strings.Join(failures, "; "))
}

// GenerateJSON runs GenerateText and coerces the answer into a JSON object.
func (c *Client) GenerateJSON(ctx context.Context, req Request) (map[string]any, error) {
	res, err := c.GenerateText(ctx, req)
	if err != nil {
		return nil, err
	}
	return coerce.Coerce(ctx, res.Text, coerce.Options{
		Feature:    string(req.Feature),
		SchemaHint: req.SchemaHint,
		Repairer:   c,
	})
}

// GenerateJSONInto runs GenerateJSON and decodes the object into v.
func (c *Client) GenerateJSONInto(ctx context.Context, req Request, v any) error {
	obj, err := c.GenerateJSON(ctx, req)
	if err != nil {
		return err
	}
	if err := coerce.Decode(obj, v); err != nil {
		return fmt.Errorf("%w: %v", coerce.ErrJSONUnrecoverable, err)
	}
	return nil
}

// Repair implements coerce.Repairer with the json_repair feature.
func (c *Client) Repair(ctx context.Context, rr coerce.RepairRequest) (string, error) {
	hint := rr.SchemaHint
	if strings.TrimSpace(hint) == "" {
		hint = "a single JSON object"
	}
	feature := rr.Feature
	if feature == "" {
		feature = "unspecified"
	}
	res, err := c.GenerateText(ctx, Request{
		Feature:  prompts.FeatureJSONRepair,
		Vars:     map[string]string{"schema_hint": hint, "feature": feature},
		Contents: rr.RawText,
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// render resolves the feature template, or passes Contents through when no feature is set.
func (c *Client) render(req Request) (string, error) {
	if req.Feature == "" {
		return req.Contents, nil
	}
	payload, ok := prompts.PayloadPlaceholder(req.Feature)
	if !ok {
		return "", fmt.Errorf("%w: %s", prompts.ErrUnknownFeature, req.Feature)
	}
	vars := make(map[string]string, len(req.Vars)+1)
	for k, v := range req.Vars {
		vars[k] = v
	}
	vars[payload] = req.Contents
	return c.registry.Render(req.Feature, req.Variant, vars)
}
