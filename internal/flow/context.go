package flow

import (
	"strings"
	"unicode/utf8"

	"github.com/aiamooz/amooz-tutor/internal/models"
)

// Context size limits, counted in runes.
const (
	MaxSectionRunes = 4000
	MaxContextRunes = 10000
)

// NoMaterial is the chapter context used when nothing is known about the page.
const NoMaterial = "(no lesson material available)"

// Thread scopes.
const (
	scopeRoot     = "root"
	scopeLesson   = "lesson-"
	scopeQuestion = "question-"
)

// ThreadID derives the memory thread id for a student in a session scope.
func ThreadID(sessionID, studentID, scope string) string {
	if scope == "" {
		scope = scopeRoot
	}
	return sessionID + ":" + studentID + ":" + scope
}

// LessonScope returns the scope for a lesson, or the root scope when lessonID is empty.
func LessonScope(lessonID string) string {
	if lessonID == "" {
		return scopeRoot
	}
	return scopeLesson + lessonID
}

// QuestionScope returns the scope for an exam-prep question.
func QuestionScope(questionID string) string {
	return scopeQuestion + questionID
}

// ChapterContext joins lesson content and page data under labeled headers.
// Whitespace is normalized, each section is capped at MaxSectionRunes and the
// whole block at MaxContextRunes.
func ChapterContext(lesson *models.Lesson, pageContext, pageMaterial string) string {
	var sections []string
	if lesson != nil {
		body := normalizeWhitespace(lesson.Content)
		if title := normalizeWhitespace(lesson.Title); title != "" {
			body = strings.TrimSpace(title + "\n" + body)
		}
		if body != "" {
			sections = append(sections, "Lesson:\n"+truncateRunes(body, MaxSectionRunes))
		}
	}
	if pc := normalizeWhitespace(pageContext); pc != "" {
		sections = append(sections, "Page Context:\n"+truncateRunes(pc, MaxSectionRunes))
	}
	if pm := normalizeWhitespace(pageMaterial); pm != "" {
		sections = append(sections, "Page Material:\n"+truncateRunes(pm, MaxSectionRunes))
	}
	if len(sections) == 0 {
		return NoMaterial
	}
	return truncateRunes(strings.Join(sections, "\n\n"), MaxContextRunes)
}

// normalizeWhitespace collapses runs of spaces inside lines and runs of blank lines.
func normalizeWhitespace(s string) string {
	s = models.NormalizeText(s)
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
