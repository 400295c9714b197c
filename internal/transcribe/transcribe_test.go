package transcribe

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockTranscriptionService implements transcriptionService for testing.
type mockTranscriptionService struct {
	resp   *openai.Transcription
	err    error
	params openai.AudioTranscriptionNewParams
	body   []byte
}

func (m *mockTranscriptionService) New(ctx context.Context, body openai.AudioTranscriptionNewParams, opts ...option.RequestOption) (*openai.Transcription, error) {
	m.params = body
	if body.File != nil {
		m.body, _ = io.ReadAll(body.File)
	}
	return m.resp, m.err
}

func TestWhisperTranscriber_Transcribe(t *testing.T) {
	svc := &mockTranscriptionService{resp: &openai.Transcription{Text: "  سلام، مشتق چیست؟ "}}
	w := &WhisperTranscriber{audio: svc, model: DefaultModel}

	text, err := w.Transcribe(context.Background(), []byte("OggS..."), "audio/ogg; codecs=opus")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "سلام، مشتق چیست؟" {
		t.Errorf("unexpected transcript %q", text)
	}
	if string(svc.params.Model) != DefaultModel {
		t.Errorf("unexpected model %q", svc.params.Model)
	}
	if string(svc.body) != "OggS..." {
		t.Errorf("audio bytes not forwarded, got %q", svc.body)
	}
}

func TestWhisperTranscriber_Errors(t *testing.T) {
	tests := []struct {
		name  string
		svc   *mockTranscriptionService
		audio []byte
		mime  string
		want  error
	}{
		{"empty audio", &mockTranscriptionService{}, nil, "audio/ogg", ErrEmptyAudio},
		{"bad mime", &mockTranscriptionService{}, []byte{1}, "video/mp4", ErrUnsupportedFormat},
		{"silence", &mockTranscriptionService{resp: &openai.Transcription{Text: " "}}, []byte{1}, "audio/wav", ErrEmptyTranscript},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &WhisperTranscriber{audio: tt.svc, model: DefaultModel}
			if _, err := w.Transcribe(context.Background(), tt.audio, tt.mime); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestWhisperTranscriber_ServiceError(t *testing.T) {
	w := &WhisperTranscriber{audio: &mockTranscriptionService{err: errors.New("503")}, model: DefaultModel}
	if _, err := w.Transcribe(context.Background(), []byte{1}, "audio/mpeg"); err == nil {
		t.Error("expected service error")
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"audio/mpeg":             "mp3",
		"AUDIO/WEBM":             "webm",
		"audio/ogg;codecs=opus":  "ogg",
		"audio/x-m4a":            "m4a",
	}
	for in, want := range tests {
		got, ok := Extension(in)
		if !ok || got != want {
			t.Errorf("Extension(%q) = %q %v, want %q", in, got, ok, want)
		}
	}
	if _, ok := Extension("image/png"); ok {
		t.Error("image/png should not be accepted")
	}
}

func TestNewWhisperTranscriber_NoKey(t *testing.T) {
	if _, err := NewWhisperTranscriber(); err == nil {
		t.Error("expected error without API key")
	}
}
