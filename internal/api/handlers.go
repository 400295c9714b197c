package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/aiamooz/amooz-tutor/internal/flow"
	"github.com/aiamooz/amooz-tutor/internal/models"
)

// uploadField is the multipart field carrying an image or a voice note.
const uploadField = "file"

// ChatRequest is the body of a chapter chat turn.
type ChatRequest struct {
	Message      string `json:"message"`
	LessonID     string `json:"lesson_id,omitempty"`
	PageContext  string `json:"page_context,omitempty"`
	PageMaterial string `json:"page_material,omitempty"`
}

// ExamPrepRequest is the body of an exam-prep turn.
type ExamPrepRequest struct {
	QuestionID      string  `json:"question_id"`
	Message         string  `json:"message"`
	StudentSelected *string `json:"student_selected,omitempty"`
	IsChecked       bool    `json:"is_checked"`
	IsCorrect       *bool   `json:"is_correct,omitempty"`
}

// chatHandler answers a chapter chat message.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	session, studentID, ok := s.resolve(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	ctx, cancel := s.turnContext(r)
	defer cancel()
	reply, err := s.tutor.HandleStudentMessage(ctx, session, studentID, req.Message, flow.StudentMessageOptions{
		LessonID:     req.LessonID,
		PageContext:  req.PageContext,
		PageMaterial: req.PageMaterial,
	})
	s.writeReply(w, "chatHandler", reply, err)
}

// examPrepHandler answers a question about an exam-prep practice question.
func (s *Server) examPrepHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	session, studentID, ok := s.resolve(w, r)
	if !ok {
		return
	}

	var req ExamPrepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.examPrepHandler: invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	ctx, cancel := s.turnContext(r)
	defer cancel()
	reply, err := s.tutor.HandleExamPrepMessage(ctx, session, studentID, req.QuestionID, req.Message, flow.ExamPrepOptions{
		StudentSelected: req.StudentSelected,
		IsChecked:       req.IsChecked,
		IsCorrect:       req.IsCorrect,
	})
	s.writeReply(w, "examPrepHandler", reply, err)
}

// imageHandler answers an uploaded image with an optional caption.
func (s *Server) imageHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	session, studentID, ok := s.resolve(w, r)
	if !ok {
		return
	}
	data, mimeType, caption, ok := s.readUpload(w, r, "imageHandler")
	if !ok {
		return
	}

	ctx, cancel := s.turnContext(r)
	defer cancel()
	reply, err := s.tutor.HandleStudentImageUpload(ctx, session, studentID, data, mimeType, caption)
	s.writeReply(w, "imageHandler", reply, err)
}

// audioHandler transcribes an uploaded voice note and answers it.
func (s *Server) audioHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	session, studentID, ok := s.resolve(w, r)
	if !ok {
		return
	}
	data, mimeType, caption, ok := s.readUpload(w, r, "audioHandler")
	if !ok {
		return
	}

	ctx, cancel := s.turnContext(r)
	defer cancel()
	reply, err := s.tutor.HandleStudentAudioUpload(ctx, session, studentID, data, mimeType, caption)
	s.writeReply(w, "audioHandler", reply, err)
}

// healthHandler provides a health check endpoint for monitoring and load balancing.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"memory":    "external",
	}
	if s.health == nil || s.health.Degraded() {
		healthData["memory"] = "local"
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}

// resolve looks up the session and student named in the route.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (*models.Session, string, bool) {
	vars := mux.Vars(r)
	sessionID, studentID := vars["sessionID"], vars["studentID"]

	session, err := s.sessions.Session(sessionID)
	if err != nil {
		slog.Debug("Server.resolve: session lookup failed", "sessionID", sessionID, "error", err)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return nil, "", false
	}
	return session, studentID, true
}

// readUpload reads the uploaded file, its MIME type and the optional caption.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, handler string) ([]byte, string, string, bool) {
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		slog.Warn("Server."+handler+": invalid multipart form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid multipart form"))
		return nil, "", "", false
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		slog.Warn("Server."+handler+": missing upload", "field", uploadField, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(fmt.Sprintf("Missing %q file field", uploadField)))
		return nil, "", "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("Server."+handler+": failed to read upload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Failed to read upload"))
		return nil, "", "", false
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	slog.Debug("Server."+handler+": upload received", "filename", header.Filename, "mimeType", mimeType, "bytes", len(data))
	return data, mimeType, r.FormValue("caption"), true
}

func (s *Server) turnContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.opts.RequestTimeout)
}

// writeReply maps a tutor result onto the response envelope.
func (s *Server) writeReply(w http.ResponseWriter, handler string, reply models.Reply, err error) {
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Error("Server."+handler+": turn failed", "error", err)
			writeJSONResponse(w, status, models.Error("Internal server error"))
			return
		}
		slog.Debug("Server."+handler+": rejected turn", "error", err)
		writeJSONResponse(w, status, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(reply))
}

// statusFor maps tutor errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnsupportedUpload):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, models.ErrEmptyMessage),
		errors.Is(err, models.ErrMessageTooLong),
		errors.Is(err, models.ErrEmptyStudentID),
		errors.Is(err, models.ErrEmptyQuestionID),
		errors.Is(err, models.ErrEmptyUpload),
		errors.Is(err, models.ErrInvalidRole):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
