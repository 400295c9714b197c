package genai

import (
	"time"

	"github.com/aiamooz/amooz-tutor/internal/prompts"
)

// Option configures a Client.
type Option func(*Client)

// WithMode sets the provider mode.
func WithMode(m Mode) Option {
	return func(c *Client) {
		c.mode = m
	}
}

// WithGemini sets the Gemini provider. A nil provider leaves Gemini unconfigured.
func WithGemini(p Provider) Option {
	return func(c *Client) {
		if p != nil {
			c.gemini = p
		}
	}
}

// WithAvalai sets the Avalai provider. A nil provider leaves Avalai unconfigured.
func WithAvalai(p Provider) Option {
	return func(c *Client) {
		if p != nil {
			c.avalai = p
		}
	}
}

// WithRegistry sets the prompt registry used for feature routing.
func WithRegistry(r *prompts.Registry) Option {
	return func(c *Client) {
		c.registry = r
	}
}

// WithTimeout sets the per-provider-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDebug writes every provider call as a JSON file under stateDir/debug.
func WithDebug(enabled bool, stateDir string) Option {
	return func(c *Client) {
		c.debugMode = enabled
		c.stateDir = stateDir
	}
}
