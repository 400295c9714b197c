// Package api exposes the tutoring core over HTTP.
//
// Each student turn is a POST under /sessions/{sessionID}/students/{studentID}.
// Session data comes from the course catalog; the orchestrator does the rest.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/aiamooz/amooz-tutor/internal/catalog"
	"github.com/aiamooz/amooz-tutor/internal/flow"
	"github.com/aiamooz/amooz-tutor/internal/genai"
	"github.com/aiamooz/amooz-tutor/internal/memory"
	"github.com/aiamooz/amooz-tutor/internal/models"
	"github.com/aiamooz/amooz-tutor/internal/scheduler"
	"github.com/aiamooz/amooz-tutor/internal/store"
	"github.com/aiamooz/amooz-tutor/internal/transcribe"
)

// Defaults for the HTTP server.
const (
	DefaultAddr           = ":8080"
	DefaultMaxUploadBytes = 10 << 20
	DefaultRequestTimeout = 90 * time.Second
	shutdownTimeout       = 15 * time.Second
)

// Tutor is the part of the orchestrator the handlers call.
type Tutor interface {
	HandleStudentMessage(ctx context.Context, session *models.Session, studentID, message string, opts flow.StudentMessageOptions) (models.Reply, error)
	HandleExamPrepMessage(ctx context.Context, session *models.Session, studentID, questionID, userMessage string, opts flow.ExamPrepOptions) (models.Reply, error)
	HandleStudentImageUpload(ctx context.Context, session *models.Session, studentID string, image []byte, mimeType, caption string) (models.Reply, error)
	HandleStudentAudioUpload(ctx context.Context, session *models.Session, studentID string, audio []byte, mimeType, caption string) (models.Reply, error)
}

// SessionSource resolves session ids to course sessions.
type SessionSource interface {
	Session(id string) (*models.Session, error)
}

// HealthReporter reports whether memory persistence is running degraded.
type HealthReporter interface {
	Degraded() bool
}

// Opts holds configuration for the HTTP server.
type Opts struct {
	Addr           string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// Option defines a configuration option for the HTTP server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		if addr != "" {
			o.Addr = addr
		}
	}
}

// WithMaxUploadBytes caps request bodies, uploads included.
func WithMaxUploadBytes(n int64) Option {
	return func(o *Opts) {
		if n > 0 {
			o.MaxUploadBytes = n
		}
	}
}

// WithRequestTimeout bounds the time spent on one student turn.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Opts) {
		if d > 0 {
			o.RequestTimeout = d
		}
	}
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	tutor    Tutor
	sessions SessionSource
	health   HealthReporter
	opts     Opts
	router   *mux.Router
}

// NewServer creates a server and registers its routes. health may be nil.
func NewServer(tutor Tutor, sessions SessionSource, health HealthReporter, opts ...Option) *Server {
	cfg := Opts{
		Addr:           DefaultAddr,
		MaxUploadBytes: DefaultMaxUploadBytes,
		RequestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{tutor: tutor, sessions: sessions, health: health, opts: cfg}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(recoverMiddleware)
	router.Use(loggingMiddleware)

	student := router.PathPrefix("/sessions/{sessionID}/students/{studentID}").Subrouter()
	student.Use(s.limitMiddleware)
	student.HandleFunc("/chat", s.chatHandler).Methods(http.MethodPost)
	student.HandleFunc("/exam-prep", s.examPrepHandler).Methods(http.MethodPost)
	student.HandleFunc("/image", s.imageHandler).Methods(http.MethodPost)
	student.HandleFunc("/audio", s.audioHandler).Methods(http.MethodPost)

	router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	})
	return router
}

// Modules groups the per-module options Run wires together.
type Modules struct {
	Store       []store.Option
	GenAI       []genai.Option
	Memory      []memory.Option
	Flow        []flow.Option
	Transcriber transcribe.Transcriber
	CatalogPath string
	// PurgeSchedule is a cron expression for dropping expired chat memory; empty disables it.
	PurgeSchedule string
}

// Run builds every module, serves HTTP and blocks until SIGINT or SIGTERM.
func Run(mods Modules, opts ...Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(mods.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	slog.Info("Run: catalog loaded", "path", mods.CatalogPath, "sessions", len(cat.IDs()))

	client, err := genai.NewClient(mods.GenAI...)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	slog.Info("Run: LLM client ready", "mode", client.Mode())

	var bind memory.Binder
	if len(mods.Store) > 0 {
		storeOpts := mods.Store
		bind = func(ctx context.Context) (store.Store, error) {
			return store.Open(ctx, storeOpts...)
		}
	}
	memOpts := append([]memory.Option{memory.WithSummarizer(memory.NewLLMSummarizer(client))}, mods.Memory...)
	mem := memory.NewManager(ctx, bind, memOpts...)
	defer func() {
		if err := mem.Close(); err != nil {
			slog.Warn("Run: failed to close memory store", "error", err)
		}
	}()

	if mods.PurgeSchedule != "" {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		if err := sched.AddTimedJob(mods.PurgeSchedule, "purge-expired-memory", time.Minute, func(ctx context.Context) error {
			_, err := mem.PurgeExpired(ctx)
			return err
		}); err != nil {
			return fmt.Errorf("invalid purge schedule %q: %w", mods.PurgeSchedule, err)
		}
		slog.Info("Run: expired memory purge scheduled", "schedule", mods.PurgeSchedule)
	}

	flowOpts := mods.Flow
	if mods.Transcriber != nil {
		flowOpts = append([]flow.Option{flow.WithTranscriber(mods.Transcriber)}, flowOpts...)
	}
	orch := flow.NewOrchestrator(client, mem, flowOpts...)

	s := NewServer(orch, cat, mem, opts...)
	return s.Serve(ctx)
}

// Serve listens on the configured address until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Serve: listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Server.Serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
