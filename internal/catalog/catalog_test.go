package catalog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aiamooz/amooz-tutor/internal/models"
)

const sampleYAML = `
sessions:
  - id: calc-101
    title: Calculus I
    lessons:
      - id: l1
        title: Limits
        content: A limit describes the value a function approaches.
    questions:
      - question_id: q1
        question_text: "What is d/dx x^2?"
        options:
          - {label: A, text: x}
          - {label: B, text: 2x}
        correct_label: B
        teacher_solution: "Power rule gives 2x"
  - id: phys-101
    title: Physics I
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := strings.Join(c.IDs(), ","); got != "calc-101,phys-101" {
		t.Errorf("IDs = %s", got)
	}

	s, err := c.Session("calc-101")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	l, ok := s.Lesson("l1")
	if !ok || l.Title != "Limits" {
		t.Errorf("lesson not loaded: %+v", l)
	}
	q, ok := s.Question("q1")
	if !ok || len(q.Options) != 2 {
		t.Fatalf("question not loaded: %+v", q)
	}
	if q.CorrectLabel != "B" || q.TeacherSolution != "Power rule gives 2x" {
		t.Errorf("privileged fields should load from YAML: %+v", q)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "Power rule") {
		t.Error("privileged fields must not be serialized to JSON")
	}
}

func TestSession_NotFound(t *testing.T) {
	c, _ := New()
	if _, err := c.Session("nope"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	var nilCatalog *Catalog
	if _, err := nilCatalog.Session("x"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("nil catalog: expected ErrSessionNotFound, got %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		sessions []models.Session
	}{
		{"empty id", []models.Session{{ID: " "}}},
		{"duplicate session", []models.Session{{ID: "a"}, {ID: "a"}}},
		{"empty question id", []models.Session{{ID: "a", Questions: []models.ExamQuestion{{}}}}},
		{"duplicate question", []models.Session{{ID: "a", Questions: []models.ExamQuestion{{QuestionID: "q"}, {QuestionID: "q"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.sessions...); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.IDs()) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(c.IDs()))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Parse([]byte("sessions: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
