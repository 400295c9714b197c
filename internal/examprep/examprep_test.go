package examprep

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/aiamooz/amooz-tutor/internal/models"
)

func ptr[T any](v T) *T { return &v }

func sampleSession() *models.Session {
	return &models.Session{
		ID: "s1",
		Questions: []models.ExamQuestion{{
			QuestionID:   "q1",
			QuestionText: "مشتق x^2 چیست؟",
			Options: []models.ExamOption{
				{Label: "الف", Text: "x"},
				{Label: "ب", Text: "2x"},
				{Label: "ج", Text: "x^3/3"},
			},
			CorrectLabel:    "ب",
			TeacherSolution: "SOLUTION: answer is ب",
		}},
	}
}

func assertSafe(t *testing.T, out, solution string) {
	t.Helper()
	for _, marker := range ForbiddenMarkers() {
		if strings.Contains(out, marker) {
			t.Errorf("output contains forbidden marker %q:\n%s", marker, out)
		}
	}
	if solution != "" && strings.Contains(out, solution) {
		t.Errorf("output leaks the teacher solution:\n%s", out)
	}
	if !strings.Contains(out, "Question:") || !strings.Contains(out, "Options:") {
		t.Errorf("output misses the Question/Options blocks:\n%s", out)
	}
}

func TestBuild_NeverLeaksSolution(t *testing.T) {
	session := sampleSession()
	tests := []struct {
		name       string
		checked    bool
		selected   *string
		isCorrect  *bool
		wantStatus string
	}{
		{"unchecked", false, nil, nil, ""},
		{"unchecked with stale selection", false, ptr("ب"), ptr(true), ""},
		{"checked correct", true, ptr("ب"), ptr(true), "Status: correct"},
		{"checked incorrect", true, ptr("الف"), ptr(false), "Status: incorrect"},
		{"checked without status", true, ptr("ج"), nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Build(session, "q1", tt.checked, tt.selected, tt.isCorrect)
			assertSafe(t, out, "SOLUTION: answer is ب")
			if strings.Contains(out, "answer is") {
				t.Errorf("solution fragment leaked:\n%s", out)
			}
			if tt.wantStatus != "" && !strings.Contains(out, tt.wantStatus) {
				t.Errorf("expected %q in:\n%s", tt.wantStatus, out)
			}
			if !tt.checked && strings.Contains(out, "Status:") {
				t.Errorf("unchecked question must not carry a status:\n%s", out)
			}
		})
	}
}

func TestBuild_ListsEveryOption(t *testing.T) {
	out := Build(sampleSession(), "q1", false, nil, nil)
	for _, want := range []string{"الف) x", "ب) 2x", "ج) x^3/3", "مشتق x^2 چیست؟"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestBuild_StudentSelection(t *testing.T) {
	out := Build(sampleSession(), "q1", true, ptr("الف"), ptr(false))
	if !strings.Contains(out, "Student selected: الف") {
		t.Errorf("selection missing:\n%s", out)
	}

	out = Build(sampleSession(), "q1", true, ptr("Z"), ptr(false))
	if strings.Contains(out, "Student selected") {
		t.Errorf("unknown labels must not be echoed:\n%s", out)
	}
}

func TestBuild_ScrubsMarkersFromAuthoredText(t *testing.T) {
	session := &models.Session{Questions: []models.ExamQuestion{{
		QuestionID:   "q",
		QuestionText: "Pick one. correct ANSWER hidden; teacher_teacher_solutionsolution",
		Options: []models.ExamOption{
			{Label: "A", Text: "see Correct Answer below"},
			{Label: "B", Text: "correct_option_label: A"},
		},
		CorrectLabel:    "A",
		TeacherSolution: "because A",
	}}}
	out := Build(session, "q", true, ptr("B"), ptr(false))
	assertSafe(t, out, "because A")
	if strings.Contains(strings.ToLower(out), "correct answer") {
		t.Errorf("case variants of the marker must be scrubbed:\n%s", out)
	}
}

func TestBuild_UnknownQuestion(t *testing.T) {
	for _, s := range []*models.Session{nil, sampleSession()} {
		out := Build(s, "missing", true, ptr("ب"), ptr(true))
		assertSafe(t, out, "SOLUTION: answer is ب")
		if strings.Contains(out, "Status:") {
			t.Errorf("unknown question must not carry a status:\n%s", out)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a := Build(sampleSession(), "q1", true, ptr("ب"), ptr(true))
	b := Build(sampleSession(), "q1", true, ptr("ب"), ptr(true))
	if a != b {
		t.Error("Build is not deterministic")
	}
}

func TestBuild_RandomizedSafety(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"x", "Correct", "Answer", "correct_option", "_label", "teacher_", "solution", "ب", "2x", " ", "\n", "answer", "SOLUTION:"}
	randText := func() string {
		var sb strings.Builder
		for i := rng.Intn(8); i >= 0; i-- {
			sb.WriteString(words[rng.Intn(len(words))])
			if rng.Intn(2) == 0 {
				sb.WriteString(" ")
			}
		}
		return sb.String()
	}

	for i := 0; i < 500; i++ {
		solution := "SOL-" + randText()
		q := models.ExamQuestion{
			QuestionID:      "q",
			QuestionText:    randText() + solution + randText(),
			CorrectLabel:    "B",
			TeacherSolution: solution,
		}
		for _, l := range []string{"A", "B", "C"} {
			q.Options = append(q.Options, models.ExamOption{Label: l, Text: randText()})
		}
		session := &models.Session{Questions: []models.ExamQuestion{q}}
		out := Build(session, "q", rng.Intn(2) == 0, ptr("B"), ptr(rng.Intn(2) == 0))
		assertSafe(t, out, strings.TrimSpace(solution))
	}
}

func TestBuild_ShortSolutionKeepsOptionsIntact(t *testing.T) {
	tests := []struct {
		name     string
		solution string
	}{
		{"correct value", "4"},
		{"correct label", "ب"},
		{"whole option line", "ب) 4"},
		{"padded value", "  4 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &models.Session{Questions: []models.ExamQuestion{{
				QuestionID:   "q",
				QuestionText: "2+2 = ?",
				Options: []models.ExamOption{
					{Label: "الف", Text: "3"},
					{Label: "ب", Text: "4"},
					{Label: "ج", Text: "5"},
				},
				CorrectLabel:    "ب",
				TeacherSolution: tt.solution,
			}}}
			for _, checked := range []bool{false, true} {
				out := Build(session, "q", checked, ptr("الف"), ptr(false))
				for _, line := range []string{"الف) 3\n", "ب) 4\n", "ج) 5\n"} {
					if !strings.Contains(out, line) {
						t.Errorf("checked=%v: option line %q not rendered intact:\n%s", checked, line, out)
					}
				}
				if !strings.Contains(out, "2+2 = ?") {
					t.Errorf("checked=%v: question text damaged:\n%s", checked, out)
				}
				assertSafe(t, out, "")
			}
		})
	}
}

func TestBuild_LongSolutionScrubbedFromQuestionOnly(t *testing.T) {
	session := &models.Session{Questions: []models.ExamQuestion{{
		QuestionID:   "q",
		QuestionText: "Add them. Since 2+2 is 4, pick ب.",
		Options: []models.ExamOption{
			{Label: "الف", Text: "3"},
			{Label: "ب", Text: "4"},
		},
		CorrectLabel:    "ب",
		TeacherSolution: "Since 2+2 is 4, pick ب.",
	}}}
	out := Build(session, "q", true, ptr("ب"), ptr(true))
	assertSafe(t, out, "Since 2+2 is 4, pick ب.")
	if !strings.Contains(out, "الف) 3\n") || !strings.Contains(out, "ب) 4\n") {
		t.Errorf("options must stay intact:\n%s", out)
	}
}
