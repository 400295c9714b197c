package models

// Lesson is a chapter of a course session the student can chat about.
type Lesson struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// ExamOption is one selectable answer of a multiple choice question.
type ExamOption struct {
	Label string `json:"label" yaml:"label"`
	Text  string `json:"text" yaml:"text"`
}

// ExamQuestion is a practice question. CorrectLabel and TeacherSolution are
// privileged and must never reach a student-facing prompt.
type ExamQuestion struct {
	QuestionID      string       `json:"question_id" yaml:"question_id"`
	QuestionText    string       `json:"question_text" yaml:"question_text"`
	Options         []ExamOption `json:"options" yaml:"options"`
	CorrectLabel    string       `json:"-" yaml:"correct_label"`
	TeacherSolution string       `json:"-" yaml:"teacher_solution"`
}

// Session is a course session a student is enrolled in.
type Session struct {
	ID        string         `json:"id" yaml:"id"`
	Title     string         `json:"title" yaml:"title"`
	Lessons   []Lesson       `json:"lessons" yaml:"lessons"`
	Questions []ExamQuestion `json:"questions" yaml:"questions"`
}

// Lesson returns the lesson with the given id.
func (s *Session) Lesson(id string) (Lesson, bool) {
	if s == nil {
		return Lesson{}, false
	}
	for _, l := range s.Lessons {
		if l.ID == id {
			return l, true
		}
	}
	return Lesson{}, false
}

// Question returns the exam question with the given id.
func (s *Session) Question(id string) (ExamQuestion, bool) {
	if s == nil {
		return ExamQuestion{}, false
	}
	for _, q := range s.Questions {
		if q.QuestionID == id {
			return q, true
		}
	}
	return ExamQuestion{}, false
}
