package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewMessage_RejectsEmpty(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t"} {
		if _, err := NewMessage(RoleStudent, content); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("content %q: expected ErrEmptyMessage, got %v", content, err)
		}
	}
}

func TestNewMessage_RejectsUnknownRole(t *testing.T) {
	if _, err := NewMessage(Role("SYSTEM"), "hi"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestNewMessage_NormalizesInvalidUTF8(t *testing.T) {
	// CESU-8 encoded high surrogate followed by text
	raw := "salam \xed\xa0\x80 dars"
	msg, err := NewMessage(RoleStudent, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(msg.Content, "�") {
		t.Errorf("expected replacement character, got %q", msg.Content)
	}
	if !strings.HasPrefix(msg.Content, "salam ") || !strings.HasSuffix(msg.Content, " dars") {
		t.Errorf("valid text was not preserved: %q", msg.Content)
	}
}

func TestMessageJSON_UsesWireRoles(t *testing.T) {
	data, err := json.Marshal([]Message{{Role: RoleStudent, Content: "hello"}, {Role: RoleAssistant, Content: "hi"}})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `[{"role":"user","content":"hello"},{"role":"assistant","content":"hi"}]`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}

	var back []Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back[0].Role != RoleStudent || back[1].Role != RoleAssistant {
		t.Errorf("roles did not round trip: %+v", back)
	}
}

func TestRenderMessages(t *testing.T) {
	out := RenderMessages([]Message{{Role: RoleStudent, Content: "m1"}, {Role: RoleAssistant, Content: "m2"}})
	if out != "Student: m1\nAmooz: m2" {
		t.Errorf("unexpected rendering %q", out)
	}
}

func TestReplyValidate(t *testing.T) {
	tests := []struct {
		name  string
		reply Reply
		ok    bool
	}{
		{"text", Reply{Type: ReplyTypeText, Content: "salam"}, true},
		{"empty text", Reply{Type: ReplyTypeText}, false},
		{"widget", Reply{Type: ReplyTypeWidget, WidgetType: "quiz", Text: "try this"}, true},
		{"widget without type", Reply{Type: ReplyTypeWidget, Text: "try this"}, false},
		{"unknown type", Reply{Type: "audio", Content: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reply.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSessionLookups(t *testing.T) {
	s := &Session{
		ID:        "s1",
		Lessons:   []Lesson{{ID: "l1", Title: "Fractions"}},
		Questions: []ExamQuestion{{QuestionID: "q1", QuestionText: "1/2 + 1/2?"}},
	}
	if l, ok := s.Lesson("l1"); !ok || l.Title != "Fractions" {
		t.Errorf("lesson lookup failed: %+v %v", l, ok)
	}
	if _, ok := s.Question("missing"); ok {
		t.Error("expected missing question")
	}
	var nilSession *Session
	if _, ok := nilSession.Lesson("l1"); ok {
		t.Error("nil session should not find lessons")
	}
}

func TestExamQuestionJSONHidesPrivilegedFields(t *testing.T) {
	q := ExamQuestion{QuestionID: "q1", CorrectLabel: "B", TeacherSolution: "because"}
	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(data), "because") || strings.Contains(string(data), `"B"`) {
		t.Errorf("privileged fields leaked: %s", data)
	}
}
