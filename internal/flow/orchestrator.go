// Package flow routes student turns through memory, context building and the
// LLM client, and shapes the tutor's reply.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aiamooz/amooz-tutor/internal/coerce"
	"github.com/aiamooz/amooz-tutor/internal/examprep"
	"github.com/aiamooz/amooz-tutor/internal/genai"
	"github.com/aiamooz/amooz-tutor/internal/memory"
	"github.com/aiamooz/amooz-tutor/internal/models"
	"github.com/aiamooz/amooz-tutor/internal/prompts"
	"github.com/aiamooz/amooz-tutor/internal/transcribe"
)

// Apology is returned when the tutor cannot produce a reply.
const Apology = "متأسفم، الان نمی‌توانم پاسخ بدهم. لطفاً چند لحظه دیگر دوباره تلاش کن."

// VoiceTranscriptMarker prefixes transcribed voice notes in the student turn.
const VoiceTranscriptMarker = "VOICE_TRANSCRIPT:"

// DefaultAttempts is how many times a reply is requested before apologizing.
const DefaultAttempts = 2

// ErrNoTranscriber is logged when an audio upload arrives without a transcriber.
var ErrNoTranscriber = errors.New("no transcriber configured")

// JSONGenerator is the part of the LLM client the orchestrator needs.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, req genai.Request) (map[string]any, error)
}

// StudentMessageOptions carries the optional page data of a chapter chat turn.
type StudentMessageOptions struct {
	LessonID     string
	PageContext  string
	PageMaterial string
}

// ExamPrepOptions carries the optional answer state of an exam-prep turn.
type ExamPrepOptions struct {
	StudentSelected *string
	IsChecked       bool
	IsCorrect       *bool
}

// Orchestrator handles student turns end to end.
type Orchestrator struct {
	llm         JSONGenerator
	memory      *memory.Manager
	transcriber transcribe.Transcriber
	attempts    int
	schemaHint  string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTranscriber sets the transcriber used for audio uploads.
func WithTranscriber(t transcribe.Transcriber) Option {
	return func(o *Orchestrator) { o.transcriber = t }
}

// WithAttempts sets how many reply attempts are made per turn.
func WithAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// NewOrchestrator creates an orchestrator over an LLM client and a memory manager.
func NewOrchestrator(llm JSONGenerator, mem *memory.Manager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llm:        llm,
		memory:     mem,
		attempts:   DefaultAttempts,
		schemaHint: coerce.SchemaHint[llmReply](),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// turn is one prepared LLM exchange.
type turn struct {
	thread  *memory.Thread
	feature prompts.Feature
	variant string
	context string
	// userTurn is what the prompt shows; remembered is what goes to memory
	userTurn   string
	remembered string
	media      []genai.Media
	withStep   bool
}

// HandleStudentMessage answers a chapter chat message.
func (o *Orchestrator) HandleStudentMessage(ctx context.Context, session *models.Session, studentID, message string, opts StudentMessageOptions) (models.Reply, error) {
	if err := validateTurn(session, studentID, message); err != nil {
		return models.Reply{}, err
	}

	var lesson *models.Lesson
	if l, ok := session.Lesson(opts.LessonID); ok {
		lesson = &l
	} else if opts.LessonID != "" {
		slog.Warn("Orchestrator.HandleStudentMessage: unknown lesson", "sessionID", session.ID, "lessonID", opts.LessonID)
	}

	threadID := ThreadID(session.ID, studentID, LessonScope(opts.LessonID))
	return o.run(ctx, turn{
		thread:     o.memory.Thread(ctx, threadID),
		feature:    prompts.FeatureChatIntent,
		context:    ChapterContext(lesson, opts.PageContext, opts.PageMaterial),
		userTurn:   message,
		remembered: message,
		withStep:   true,
	})
}

// HandleExamPrepMessage answers a question about an exam-prep practice question.
// The question context never carries the correct option or the solution.
func (o *Orchestrator) HandleExamPrepMessage(ctx context.Context, session *models.Session, studentID, questionID, userMessage string, opts ExamPrepOptions) (models.Reply, error) {
	if err := validateTurn(session, studentID, userMessage); err != nil {
		return models.Reply{}, err
	}
	if strings.TrimSpace(questionID) == "" {
		return models.Reply{}, models.ErrEmptyQuestionID
	}

	threadID := ThreadID(session.ID, studentID, QuestionScope(questionID))
	return o.run(ctx, turn{
		thread:     o.memory.Thread(ctx, threadID),
		feature:    prompts.FeatureExamPrepTutor,
		context:    examprep.Build(session, questionID, opts.IsChecked, opts.StudentSelected, opts.IsCorrect),
		userTurn:   userMessage,
		remembered: userMessage,
	})
}

// HandleStudentImageUpload answers an image the student attached, with an optional caption.
func (o *Orchestrator) HandleStudentImageUpload(ctx context.Context, session *models.Session, studentID string, image []byte, mimeType, caption string) (models.Reply, error) {
	if err := validateUpload(session, studentID, image, mimeType, "image/"); err != nil {
		return models.Reply{}, err
	}

	caption = strings.TrimSpace(models.NormalizeText(caption))
	userTurn := caption
	if userTurn == "" {
		userTurn = "(no caption)"
	}
	remembered := "[image]"
	if caption != "" {
		remembered += " " + caption
	}

	threadID := ThreadID(session.ID, studentID, scopeRoot)
	return o.run(ctx, turn{
		thread:     o.memory.Thread(ctx, threadID),
		feature:    prompts.FeatureChatIntent,
		variant:    "image",
		userTurn:   userTurn,
		remembered: remembered,
		media:      []genai.Media{{MIMEType: mimeType, Data: image}},
	})
}

// HandleStudentAudioUpload transcribes a voice note and answers it as a text message.
func (o *Orchestrator) HandleStudentAudioUpload(ctx context.Context, session *models.Session, studentID string, audio []byte, mimeType, caption string) (models.Reply, error) {
	if err := validateUpload(session, studentID, audio, mimeType, "audio/"); err != nil {
		return models.Reply{}, err
	}
	if o.transcriber == nil {
		slog.Error("Orchestrator.HandleStudentAudioUpload: cannot transcribe", "error", ErrNoTranscriber)
		return models.TextReply(Apology), nil
	}

	transcript, err := o.transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil || strings.TrimSpace(transcript) == "" {
		slog.Warn("Orchestrator.HandleStudentAudioUpload: transcription failed", "sessionID", session.ID, "studentID", studentID, "error", err)
		return models.TextReply(Apology), nil
	}

	message := VoiceTranscriptMarker + " " + strings.TrimSpace(transcript)
	if c := strings.TrimSpace(caption); c != "" {
		message += "\n" + c
	}
	return o.HandleStudentMessage(ctx, session, studentID, truncateRunes(message, models.MaxStudentMessageLength), StudentMessageOptions{})
}

// run asks the LLM with the student turn shown as pending history, then
// records the student turn and the answer together. When no answer comes, only
// the student turn is recorded.
func (o *Orchestrator) run(ctx context.Context, t turn) (models.Reply, error) {
	th := t.thread
	pending, err := models.NewMessage(models.RoleStudent, t.remembered)
	if err != nil {
		return models.Reply{}, err
	}

	summary, history := th.History(pending)
	vars := map[string]string{
		"summary": orNone(summary),
		"history": orNone(history),
	}
	if t.variant == "" {
		vars["context"] = t.context
	}
	if t.withStep {
		vars["activation_step"] = strconv.Itoa(th.ActivationStep())
	}

	req := genai.Request{
		Feature:    t.feature,
		Variant:    t.variant,
		Vars:       vars,
		Contents:   t.userTurn,
		Media:      t.media,
		SchemaHint: o.schemaHint,
	}

	reply, step, err := o.generate(ctx, th.ID(), req)
	if err != nil {
		return models.Reply{}, err
	}
	if reply.Type == "" {
		if err := th.Add(ctx, models.RoleStudent, t.remembered); err != nil {
			slog.Warn("Orchestrator.run: student turn not remembered", "threadID", th.ID(), "error", err)
		}
		return models.TextReply(Apology), nil
	}

	if step != nil && t.withStep {
		if err := th.SetActivationStep(ctx, *step); err != nil {
			slog.Warn("Orchestrator.run: ignoring activation step", "threadID", th.ID(), "step", *step, "error", err)
		}
	}
	if err := th.AddTurn(ctx, t.remembered, reply.Body()); err != nil {
		slog.Warn("Orchestrator.run: turn not remembered", "threadID", th.ID(), "error", err)
	}
	return reply, nil
}

// generate asks for a reply up to o.attempts times. A zero Reply with a nil
// error means every attempt failed; only programmer errors are returned.
func (o *Orchestrator) generate(ctx context.Context, threadID string, req genai.Request) (models.Reply, *int, error) {
	for attempt := 1; attempt <= o.attempts; attempt++ {
		obj, err := o.llm.GenerateJSON(ctx, req)
		if err == nil {
			reply, step, perr := parseReply(obj)
			if perr == nil {
				slog.Debug("Orchestrator.generate: reply ready", "threadID", threadID, "feature", req.Feature, "type", reply.Type, "attempt", attempt)
				return reply, step, nil
			}
			err = perr
		}
		if isProgrammerError(err) {
			slog.Error("Orchestrator.generate: prompt error", "threadID", threadID, "feature", req.Feature, "error", err)
			return models.Reply{}, nil, err
		}
		slog.Warn("Orchestrator.generate: attempt failed", "threadID", threadID, "feature", req.Feature, "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	slog.Error("Orchestrator.generate: giving up, sending apology", "threadID", threadID, "feature", req.Feature, "attempts", o.attempts)
	return models.Reply{}, nil, nil
}

func isProgrammerError(err error) bool {
	return errors.Is(err, prompts.ErrMissingPlaceholder) ||
		errors.Is(err, prompts.ErrUnknownPlaceholder) ||
		errors.Is(err, prompts.ErrUnknownFeature) ||
		errors.Is(err, prompts.ErrTemplateNotFound)
}

func validateTurn(session *models.Session, studentID, message string) error {
	if session == nil {
		return models.ErrSessionNotFound
	}
	if strings.TrimSpace(studentID) == "" {
		return models.ErrEmptyStudentID
	}
	if strings.TrimSpace(message) == "" {
		return models.ErrEmptyMessage
	}
	if len([]rune(message)) > models.MaxStudentMessageLength {
		return models.ErrMessageTooLong
	}
	return nil
}

func validateUpload(session *models.Session, studentID string, data []byte, mimeType, prefix string) error {
	if session == nil {
		return models.ErrSessionNotFound
	}
	if strings.TrimSpace(studentID) == "" {
		return models.ErrEmptyStudentID
	}
	if len(data) == 0 {
		return models.ErrEmptyUpload
	}
	if !strings.HasPrefix(strings.ToLower(mimeType), prefix) {
		return models.ErrUnsupportedUpload
	}
	return nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
