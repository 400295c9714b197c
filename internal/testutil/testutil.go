// Package testutil provides fixtures and helpers shared by the tutor's tests.
package testutil

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aiamooz/amooz-tutor/internal/genai"
	"github.com/aiamooz/amooz-tutor/internal/models"
)

// SampleSession returns a session with one lesson and one exam question.
// The question's correct option is B and its solution mentions "2+2".
func SampleSession() models.Session {
	return models.Session{
		ID:    "s1",
		Title: "Calculus I",
		Lessons: []models.Lesson{{
			ID:      "l1",
			Title:   "Limits",
			Content: "A limit describes the value a function approaches.",
		}},
		Questions: []models.ExamQuestion{{
			QuestionID:      "q1",
			QuestionText:    "What is 2+2?",
			Options:         []models.ExamOption{{Label: "A", Text: "3"}, {Label: "B", Text: "4"}},
			CorrectLabel:    "B",
			TeacherSolution: "2+2 equals 4.",
		}},
	}
}

// ScriptedLLM answers GenerateJSON calls from a queue and records every request.
// An empty queue yields genai.ErrLLMUnavailable.
type ScriptedLLM struct {
	mu      sync.Mutex
	replies []map[string]any
	reqs    []genai.Request
}

// NewScriptedLLM creates a ScriptedLLM that returns replies in order.
func NewScriptedLLM(replies ...map[string]any) *ScriptedLLM {
	return &ScriptedLLM{replies: replies}
}

// GenerateJSON pops the next scripted reply.
func (l *ScriptedLLM) GenerateJSON(_ context.Context, req genai.Request) (map[string]any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, req)
	if len(l.replies) == 0 {
		return nil, genai.ErrLLMUnavailable
	}
	obj := l.replies[0]
	l.replies = l.replies[1:]
	return obj, nil
}

// Requests returns a copy of the requests seen so far.
func (l *ScriptedLLM) Requests() []genai.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]genai.Request(nil), l.reqs...)
}

// DecodeAPIResponse decodes the standard response envelope and checks its status.
func DecodeAPIResponse(t testing.TB, rr *httptest.ResponseRecorder, wantStatus models.APIStatus) models.APIResponse {
	t.Helper()
	var response models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode JSON response %q: %v", rr.Body.String(), err)
	}
	if response.Status != wantStatus {
		t.Errorf("expected status %q, got %q (message %q)", wantStatus, response.Status, response.Message)
	}
	return response
}

// ResultAs re-decodes the envelope's result into target.
func ResultAs(t testing.TB, response models.APIResponse, target any) {
	t.Helper()
	MustUnmarshalJSON(t, MustMarshalJSON(t, response.Result), target)
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t testing.TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t testing.TB, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
