// Package models defines the core data structures for the Amooz tutoring service.
//
// It includes chat memory types, course session types and the API response
// envelope, which are shared across modules.
package models

import (
	"errors"
	"strings"
)

// Validation constants for input validation
const (
	// MaxStudentMessageLength defines the maximum allowed length for a single student turn
	MaxStudentMessageLength = 8000
	// MaxSuggestions defines the maximum number of follow-up suggestions returned to the student
	MaxSuggestions = 4
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage       = errors.New("message content cannot be empty")
	ErrMessageTooLong     = errors.New("message content exceeds maximum length")
	ErrInvalidRole        = errors.New("invalid message role")
	ErrNegativeStep       = errors.New("activation step cannot be negative")
	ErrEmptyStudentID     = errors.New("student id cannot be empty")
	ErrEmptyQuestionID    = errors.New("question id cannot be empty")
	ErrEmptyUpload        = errors.New("uploaded file is empty")
	ErrUnsupportedUpload  = errors.New("unsupported upload mime type")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidReplyFormat = errors.New("reply has neither content nor widget")
)

// ReplyType distinguishes plain text tutor replies from interactive widgets.
type ReplyType string

const (
	// ReplyTypeText is a plain text reply.
	ReplyTypeText ReplyType = "text"
	// ReplyTypeWidget is a structured reply rendered as an interactive block.
	ReplyTypeWidget ReplyType = "widget"
)

// Reply is what every orchestrator entry point returns to the HTTP layer.
type Reply struct {
	Type        ReplyType      `json:"type"`
	Content     string         `json:"content,omitempty"`
	Text        string         `json:"text,omitempty"`
	Suggestions []string       `json:"suggestions"`
	WidgetType  string         `json:"widget_type,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Body returns the text that should be remembered for this reply.
func (r Reply) Body() string {
	if r.Type == ReplyTypeWidget {
		return r.Text
	}
	return r.Content
}

// Validate checks that a reply carries something the student can read.
func (r Reply) Validate() error {
	switch r.Type {
	case ReplyTypeText:
		if strings.TrimSpace(r.Content) == "" {
			return ErrInvalidReplyFormat
		}
	case ReplyTypeWidget:
		if r.WidgetType == "" || strings.TrimSpace(r.Text) == "" {
			return ErrInvalidReplyFormat
		}
	default:
		return ErrInvalidReplyFormat
	}
	return nil
}

// TextReply builds a plain text reply with no suggestions.
func TextReply(content string) Reply {
	return Reply{Type: ReplyTypeText, Content: content, Suggestions: []string{}}
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  APIStatus   `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}
