// Package transcribe turns student voice notes into text.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is the Whisper model used when none is configured.
const DefaultModel = "whisper-1"

var (
	// ErrEmptyAudio is returned for zero-length uploads.
	ErrEmptyAudio = errors.New("audio is empty")
	// ErrUnsupportedFormat is returned for mime types Whisper does not accept.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrEmptyTranscript is returned when the service heard nothing.
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// Transcriber converts audio bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, audio []byte, mimeType string) (string, error)

// Transcribe implements Transcriber.
func (f TranscriberFunc) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return f(ctx, audio, mimeType)
}

// extensions maps accepted mime types to the file name extension Whisper expects.
var extensions = map[string]string{
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "m4a",
	"audio/m4a":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/webm":  "webm",
	"audio/ogg":   "ogg",
	"audio/flac":  "flac",
}

// Extension returns the file extension for mimeType, ignoring parameters such as codecs.
func Extension(mimeType string) (string, bool) {
	base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(mimeType)), ";")
	ext, ok := extensions[strings.TrimSpace(base)]
	return ext, ok
}

// transcriptionService defines minimal interface for audio transcriptions.
type transcriptionService interface {
	New(ctx context.Context, body openai.AudioTranscriptionNewParams, opts ...option.RequestOption) (*openai.Transcription, error)
}

// WhisperTranscriber calls an OpenAI-compatible transcription endpoint.
type WhisperTranscriber struct {
	audio transcriptionService
	model string
}

// Opts holds configuration for the Whisper transcriber.
type Opts struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Option configures the Whisper transcriber.
type Option func(*Opts)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// NewWhisperTranscriber creates a transcriber from options.
func NewWhisperTranscriber(opts ...Option) (*WhisperTranscriber, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("transcriber API key not set")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	cli := openai.NewClient(reqOpts...)
	slog.Debug("WhisperTranscriber created", "model", model, "baseURL", cfg.BaseURL)
	return &WhisperTranscriber{audio: &cli.Audio.Transcriptions, model: model}, nil
}

// Transcribe implements Transcriber.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	ext, ok := Extension(mimeType)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}

	resp, err := w.audio.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), "voice."+ext, mimeType),
		Model: openai.AudioModel(w.model),
	})
	if err != nil {
		slog.Error("WhisperTranscriber.Transcribe: request failed", "error", err, "bytes", len(audio), "mimeType", mimeType)
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	slog.Debug("WhisperTranscriber.Transcribe: transcribed", "bytes", len(audio), "chars", len(text))
	return text, nil
}
