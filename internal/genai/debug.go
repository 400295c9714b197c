package genai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// debugEntry is the on-disk record of one provider call.
type debugEntry struct {
	Timestamp time.Time    `json:"timestamp"`
	Method    string       `json:"method"`
	Provider  ProviderName `json:"provider"`
	Model     string       `json:"model"`
	Feature   string       `json:"feature,omitempty"`
	Variant   string       `json:"variant,omitempty"`
	Prompt    string       `json:"prompt"`
	Media     int          `json:"media"`
	Response  string       `json:"response"`
	Error     string       `json:"error,omitempty"`
}

// writeDebugLog records a call under <stateDir>/debug when debug mode is on.
// Failures are logged and never affect the call.
func (c *Client) writeDebugLog(method string, provider ProviderName, model string, req Request, prompt, response string, callErr error) {
	if !c.debugMode || c.stateDir == "" {
		return
	}

	entry := debugEntry{
		Timestamp: time.Now().UTC(),
		Method:    method,
		Provider:  provider,
		Model:     model,
		Feature:   string(req.Feature),
		Variant:   req.Variant,
		Prompt:    prompt,
		Media:     len(req.Media),
		Response:  response,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}

	dir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("genai.writeDebugLog: failed to create debug directory", "error", err, "dir", dir)
		return
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("genai.writeDebugLog: failed to marshal entry", "error", err)
		return
	}
	name := fmt.Sprintf("%s_%s_%d.json", entry.Timestamp.Format("20060102T150405"), provider, entry.Timestamp.UnixNano())
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		slog.Warn("genai.writeDebugLog: failed to write entry", "error", err)
	}
}
