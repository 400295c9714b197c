// Package examprep renders the exam-preparation question context given to the tutor.
//
// The rendered block shows the question, every option and, once the student
// has checked an answer, what they picked and whether it was right. It never
// carries the correct label or the teacher's solution, except where the
// solution is itself an option the block already lists.
package examprep

import (
	"regexp"
	"slices"
	"strings"

	"github.com/aiamooz/amooz-tutor/internal/models"
)

// forbiddenMarkers are field names and headers that would point at the answer.
var forbiddenMarkers = []string{"Correct Answer", "correct_option_label", "teacher_solution"}

var forbiddenPattern = regexp.MustCompile(`(?i)correct answer|correct_option_label|teacher_solution`)

// ForbiddenMarkers returns the strings Build never emits.
func ForbiddenMarkers() []string {
	return slices.Clone(forbiddenMarkers)
}

// Build renders the context for questionID in session. studentSelected and
// isCorrect are only used when isChecked is true. The result depends on the
// inputs alone.
func Build(session *models.Session, questionID string, isChecked bool, studentSelected *string, isCorrect *bool) string {
	q, ok := session.Question(questionID)
	if !ok {
		return "Question:\n(question not available)\n\nOptions:\n(none)"
	}

	s := scrubber{solution: strings.TrimSpace(q.TeacherSolution)}
	if publicInOptions(q.Options, s.solution) {
		s.solution = ""
	}

	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(s.clean(q.QuestionText))
	b.WriteString("\n\nOptions:\n")
	if len(q.Options) == 0 {
		b.WriteString("(none)\n")
	}
	for _, o := range q.Options {
		b.WriteString(optionLine(o))
		b.WriteString("\n")
	}

	if !isChecked {
		b.WriteString("\nThe student has not checked an answer yet.")
		return b.String()
	}

	if studentSelected != nil {
		label := strings.TrimSpace(*studentSelected)
		if hasLabel(q.Options, label) {
			b.WriteString("\nStudent selected: ")
			b.WriteString(scrubMarkers(label))
		}
	}
	if isCorrect != nil {
		b.WriteString("\nStatus: ")
		if *isCorrect {
			b.WriteString("correct")
		} else {
			b.WriteString("incorrect")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func hasLabel(opts []models.ExamOption, label string) bool {
	return slices.ContainsFunc(opts, func(o models.ExamOption) bool { return o.Label == label })
}

// optionLine renders one option. Options are only scrubbed of markers, so a
// short solution such as the correct value never blanks the option it names.
func optionLine(o models.ExamOption) string {
	return scrubMarkers(o.Label) + ") " + scrubMarkers(o.Text)
}

// publicInOptions reports whether the solution is already shown verbatim as an
// option label, option text or a whole option line.
func publicInOptions(opts []models.ExamOption, solution string) bool {
	if solution == "" {
		return false
	}
	return slices.ContainsFunc(opts, func(o models.ExamOption) bool {
		return solution == strings.TrimSpace(o.Label) ||
			solution == strings.TrimSpace(o.Text) ||
			solution == optionLine(o)
	})
}

func scrubMarkers(text string) string {
	return scrubber{}.clean(text)
}

type scrubber struct {
	solution string
}

// clean removes forbidden markers and the solution text until none are left,
// since one removal can join the halves of another occurrence.
func (s scrubber) clean(text string) string {
	text = strings.TrimSpace(text)
	for {
		next := forbiddenPattern.ReplaceAllString(text, "")
		if s.solution != "" {
			next = strings.ReplaceAll(next, s.solution, "")
		}
		if next == text {
			return text
		}
		text = next
	}
}
