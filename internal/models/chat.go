package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Role identifies who authored a message in a tutoring thread.
type Role string

const (
	// RoleStudent is a message written by the student.
	RoleStudent Role = "STUDENT"
	// RoleAssistant is a message written by the tutor.
	RoleAssistant Role = "ASSISTANT"
)

// wire names used in the persisted thread state
const (
	wireRoleStudent   = "user"
	wireRoleAssistant = "assistant"
)

// Label returns the prefix used when rendering history for the LLM.
func (r Role) Label() string {
	if r == RoleAssistant {
		return "Amooz"
	}
	return "Student"
}

// MarshalJSON encodes the role with its persisted wire name.
func (r Role) MarshalJSON() ([]byte, error) {
	switch r {
	case RoleStudent:
		return json.Marshal(wireRoleStudent)
	case RoleAssistant:
		return json.Marshal(wireRoleAssistant)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, string(r))
	}
}

// UnmarshalJSON accepts both wire names and the upper-case role names.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case wireRoleStudent, "student":
		*r = RoleStudent
	case wireRoleAssistant, "amooz":
		*r = RoleAssistant
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return nil
}

// Message is a single turn kept in a thread buffer.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage normalizes content to valid UTF-8 and rejects empty turns.
func NewMessage(role Role, content string) (Message, error) {
	if role != RoleStudent && role != RoleAssistant {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, string(role))
	}
	content = NormalizeText(content)
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyMessage
	}
	return Message{Role: role, Content: content}, nil
}

// NormalizeText replaces invalid byte sequences, including encoded surrogate
// halves, with U+FFFD.
func NormalizeText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

// ThreadState is the persisted memory of one tutoring thread.
type ThreadState struct {
	ThreadID       string    `json:"-"`
	Buffer         []Message `json:"buffer"`
	Summary        string    `json:"summary"`
	ActivationStep int       `json:"activation_step"`
}

// RenderMessages renders messages one per line using the Student/Amooz labels.
func RenderMessages(msgs []Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Role.Label()+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
