package genai

import (
	"log/slog"
	"os"
	"strings"
)

// ProviderName identifies the backend that actually answered a call.
type ProviderName string

const (
	ProviderGemini ProviderName = "GEMINI"
	ProviderAvalai ProviderName = "AVALAI"
)

// Mode selects which providers the client may call.
type Mode string

const (
	// ModeGemini calls Gemini only.
	ModeGemini Mode = "GEMINI"
	// ModeAvalai calls Avalai only; Gemini is never touched.
	ModeAvalai Mode = "AVALAI"
	// ModeAuto tries Gemini first and falls back to Avalai.
	ModeAuto Mode = "AUTO"
)

// Environment keys for provider selection.
const (
	EnvProvider       = "LLM_PROVIDER"
	EnvProviderLegacy = "MODE"
)

// ParseMode maps a configuration value to a Mode. Unknown values map to ModeAuto.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gemini":
		return ModeGemini
	case "avalai":
		return ModeAvalai
	case "auto":
		return ModeAuto
	default:
		if s != "" {
			slog.Warn("genai.ParseMode: unknown provider mode, using auto", "value", s)
		}
		return ModeAuto
	}
}

// ModeFromEnv reads LLM_PROVIDER, falling back to the legacy MODE key.
func ModeFromEnv() Mode {
	if v := os.Getenv(EnvProvider); v != "" {
		return ParseMode(v)
	}
	return ParseMode(os.Getenv(EnvProviderLegacy))
}
