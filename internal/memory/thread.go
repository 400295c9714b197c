package memory

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/aiamooz/amooz-tutor/internal/models"
)

// Thread is one conversation's memory. A Thread is not safe for concurrent
// use; callers handle a thread id sequentially within a request.
type Thread struct {
	id    string
	m     *Manager
	state models.ThreadState
}

// ID returns the thread id.
func (t *Thread) ID() string { return t.id }

// Add appends a message, applies the overflow policy and persists the thread.
// Only invalid input is reported; persistence problems are absorbed by the Manager.
func (t *Thread) Add(ctx context.Context, role models.Role, content string) error {
	msg, err := models.NewMessage(role, content)
	if err != nil {
		return err
	}
	t.append(ctx, msg)
	return nil
}

// AddTurn appends a student message and the tutor's answer as one step, so
// the overflow policy sees both at once.
func (t *Thread) AddTurn(ctx context.Context, student, assistant string) error {
	s, err := models.NewMessage(models.RoleStudent, student)
	if err != nil {
		return err
	}
	a, err := models.NewMessage(models.RoleAssistant, assistant)
	if err != nil {
		return err
	}
	t.append(ctx, s, a)
	return nil
}

func (t *Thread) append(ctx context.Context, msgs ...models.Message) {
	t.state.Buffer = append(t.state.Buffer, msgs...)
	t.applyOverflow(ctx)
	t.m.save(ctx, t.state)
}

func (t *Thread) applyOverflow(ctx context.Context) {
	n := len(t.state.Buffer)
	maxBuf := t.m.maxBuffer
	switch {
	case n > t.m.summarizeAfter && n > maxBuf:
		cut := n - maxBuf
		toSummarize := slices.Clone(t.state.Buffer[:cut])
		t.state.Buffer = slices.Clone(t.state.Buffer[cut:])
		t.state.Summary = t.summarize(ctx, toSummarize)
	case n > maxBuf:
		t.state.Buffer = slices.Clone(t.state.Buffer[n-maxBuf:])
	}
}

func (t *Thread) summarize(ctx context.Context, msgs []models.Message) string {
	prev := t.state.Summary
	if t.m.summarizer != nil {
		out, err := t.m.summarizer.Summarize(ctx, prev, msgs)
		if err == nil && strings.TrimSpace(out) != "" {
			slog.Debug("Thread.summarize: summary updated", "threadID", t.id, "summarized", len(msgs))
			return strings.TrimSpace(out)
		}
		slog.Warn("Thread.summarize: summarizer failed, appending raw lines", "threadID", t.id, "error", err)
	}
	rendered := models.RenderMessages(msgs)
	if strings.TrimSpace(prev) == "" {
		return rendered
	}
	return prev + "\n" + rendered
}

// History returns the long-term summary and the rendered recent buffer,
// followed by any pending messages not yet recorded.
func (t *Thread) History(pending ...models.Message) (summary, rendered string) {
	return t.state.Summary, models.RenderMessages(append(slices.Clone(t.state.Buffer), pending...))
}

// Messages returns a copy of the recent buffer.
func (t *Thread) Messages() []models.Message {
	return slices.Clone(t.state.Buffer)
}

// ActivationStep returns the tutoring step stored for the thread.
func (t *Thread) ActivationStep() int {
	return t.state.ActivationStep
}

// SetActivationStep overwrites the tutoring step; moving backwards is allowed.
func (t *Thread) SetActivationStep(ctx context.Context, n int) error {
	if n < 0 {
		return models.ErrNegativeStep
	}
	t.state.ActivationStep = n
	t.m.save(ctx, t.state)
	return nil
}
