// Package memory keeps the per-thread conversation memory of the tutor.
//
// Each thread holds a bounded buffer of recent messages plus a rolling
// summary of everything older. State is written through to an external
// key-value store; when that store cannot be bound or later fails, the
// Manager switches to an in-process map and keeps serving.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aiamooz/amooz-tutor/internal/models"
	"github.com/aiamooz/amooz-tutor/internal/store"
)

// Defaults used when CHAT_MEMORY_MAX_BUFFER and CHAT_MEMORY_SUMMARIZE_AFTER are unset.
const (
	DefaultMaxBuffer      = 6
	DefaultSummarizeAfter = 7
	DefaultStoreTimeout   = 5 * time.Second
)

// KeyPrefix namespaces thread state in the external store.
const KeyPrefix = "chat_memory:"

// EventPersistenceDegraded is logged when a Manager falls back to local memory.
const EventPersistenceDegraded = "MEMORY_PERSISTENCE_DEGRADED"

// Key returns the store key for a thread.
func Key(threadID string) string {
	return KeyPrefix + threadID
}

// Binder connects to the external store. It is called once by NewManager.
type Binder func(ctx context.Context) (store.Store, error)

// StoreBinder binds an already opened store.
func StoreBinder(s store.Store) Binder {
	return func(context.Context) (store.Store, error) { return s, nil }
}

// Manager hands out threads and owns persistence for them.
type Manager struct {
	maxBuffer      int
	summarizeAfter int
	summarizer     Summarizer
	storeTimeout   time.Duration

	mu       sync.Mutex
	remote   store.Store
	local    map[string]models.ThreadState
	degraded bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxBuffer sets the hard cap on retained recent messages.
func WithMaxBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxBuffer = n
		}
	}
}

// WithSummarizeAfter sets the buffer length above which old messages are summarized.
func WithSummarizeAfter(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.summarizeAfter = n
		}
	}
}

// WithSummarizer sets the summarizer used on overflow.
func WithSummarizer(s Summarizer) Option {
	return func(m *Manager) {
		m.summarizer = s
	}
}

// WithStoreTimeout bounds each call to the external store.
func WithStoreTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.storeTimeout = d
		}
	}
}

// NewManager binds the external store and never fails: a bind error or a nil
// binder leaves the Manager on its in-process map.
func NewManager(ctx context.Context, bind Binder, opts ...Option) *Manager {
	m := &Manager{
		maxBuffer:      DefaultMaxBuffer,
		summarizeAfter: DefaultSummarizeAfter,
		storeTimeout:   DefaultStoreTimeout,
		local:          make(map[string]models.ThreadState),
	}
	for _, opt := range opts {
		opt(m)
	}

	if bind == nil {
		slog.Info("Manager.NewManager: no external store configured, using local memory")
		m.degraded = true
		return m
	}
	s, err := bind(ctx)
	if err != nil || s == nil {
		m.degrade("bind", err)
		return m
	}
	m.remote = s
	slog.Debug("Manager.NewManager: bound external store", "maxBuffer", m.maxBuffer, "summarizeAfter", m.summarizeAfter)
	return m
}

// Degraded reports whether the Manager is serving from its in-process map.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// Close releases the external store, if bound.
func (m *Manager) Close() error {
	m.mu.Lock()
	s := m.remote
	m.remote = nil
	m.mu.Unlock()
	if s != nil {
		return s.Close()
	}
	return nil
}

// PurgeExpired asks the bound store to drop expired threads. Stores that
// expire keys on their own report zero.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	remote := m.remote
	m.mu.Unlock()
	p, ok := remote.(store.Purger)
	if !ok {
		return 0, nil
	}
	n, err := p.PurgeExpired(ctx)
	if err != nil {
		slog.Warn("Manager.PurgeExpired: purge failed", "error", err)
		return 0, err
	}
	if n > 0 {
		slog.Info("Manager.PurgeExpired: dropped expired threads", "count", n)
	}
	return n, nil
}

// Thread loads the state of threadID, creating an empty one when absent.
func (m *Manager) Thread(ctx context.Context, threadID string) *Thread {
	return &Thread{id: threadID, m: m, state: m.load(ctx, threadID)}
}

func (m *Manager) load(ctx context.Context, threadID string) models.ThreadState {
	fresh := models.ThreadState{ThreadID: threadID}

	m.mu.Lock()
	remote, degraded := m.remote, m.degraded
	m.mu.Unlock()

	if !degraded && remote != nil {
		sctx, cancel := m.storeContext(ctx)
		raw, ok, err := remote.Get(sctx, Key(threadID))
		cancel()
		if err == nil {
			if !ok {
				return fresh
			}
			var st models.ThreadState
			if err := json.Unmarshal([]byte(raw), &st); err != nil {
				slog.Warn("Manager.load: discarding undecodable thread state", "threadID", threadID, "error", err)
				return fresh
			}
			st.ThreadID = threadID
			return st
		}
		m.fail("get", threadID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.local[threadID]
	if !ok {
		return fresh
	}
	return cloneState(st)
}

func (m *Manager) save(ctx context.Context, st models.ThreadState) {
	m.mu.Lock()
	remote, degraded := m.remote, m.degraded
	m.mu.Unlock()

	if !degraded && remote != nil {
		data, err := json.Marshal(st)
		if err == nil {
			sctx, cancel := m.storeContext(ctx)
			err = remote.Set(sctx, Key(st.ThreadID), string(data))
			cancel()
		}
		if err == nil {
			return
		}
		m.fail("set", st.ThreadID, err)
	}

	m.mu.Lock()
	m.local[st.ThreadID] = cloneState(st)
	m.mu.Unlock()
}

// storeContext detaches store calls from the caller's cancellation and bounds
// them by the store timeout.
func (m *Manager) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.storeTimeout)
}

// fail handles a store error. Timeouts and cancellations only affect the
// current call; anything else degrades the Manager.
func (m *Manager) fail(op, threadID string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("Manager.fail: store call did not finish, serving local copy", "op", op, "threadID", threadID, "error", err)
		return
	}
	m.degrade(op, err)
}

// degrade switches this Manager to local memory for the rest of its life.
func (m *Manager) degrade(op string, err error) {
	m.mu.Lock()
	already := m.degraded
	m.degraded = true
	m.mu.Unlock()
	if !already {
		slog.Warn("Manager.degrade: "+EventPersistenceDegraded, "op", op, "error", err)
	}
}

func cloneState(st models.ThreadState) models.ThreadState {
	st.Buffer = slices.Clone(st.Buffer)
	return st
}
