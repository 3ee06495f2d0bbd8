// Package session hosts one console store per recording session.
//
// All transports (HTTP handlers, WebSocket, CLI through the client) talk to
// the Manager, never directly to the console reducer or the archive.
//
// Data flow:
//
//	Transport → Session.Dispatch → filters.Reduce → console.Reducer.Reduce
//	                             → storage.Archive.Append (journal)
//	                             → subscribers (Update)
//	Startup   → Manager.load     → storage.Archive.ForEach → replay
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/snehjoshi/replayconsole/internal/console"
	"github.com/snehjoshi/replayconsole/internal/filters"
	"github.com/snehjoshi/replayconsole/internal/metrics"
	"github.com/snehjoshi/replayconsole/internal/node"
	"github.com/snehjoshi/replayconsole/internal/storage"
	"github.com/snehjoshi/replayconsole/internal/types"
)

// ─── Error sentinels ──────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session: not found")

	// ErrClosed is returned by Dispatch on a session that has been deleted.
	ErrClosed = errors.New("session: closed")
)

// ─── Option / functional options ─────────────────────────────────────────────

// Option is a functional option for the Manager.
type Option func(*Manager)

// WithMetrics attaches a metrics.Registry so that every dispatch is recorded.
func WithMetrics(reg *metrics.Registry) Option {
	return func(m *Manager) { m.metrics = reg }
}

// WithLogger sets the logger for session lifecycle events. The console
// reducer's trace events go to the same logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithConsoleOptions configures the console reducer shared by every session.
func WithConsoleOptions(opts ...console.Option) Option {
	return func(m *Manager) { m.consoleOpts = append(m.consoleOpts, opts...) }
}

// WithDefaultFilters sets the filter state new sessions start with.
func WithDefaultFilters(fs types.Filters) Option {
	return func(m *Manager) { m.defaults = fs }
}

// WithCompactOnClear drops journal entries made obsolete by MESSAGES_CLEAR.
// Filter actions are kept since the filter state outlives a clear.
func WithCompactOnClear(on bool) Option {
	return func(m *Manager) { m.compactOnClear = on }
}

// ─── Manager ──────────────────────────────────────────────────────────────────

// Info summarises a session for listings.
type Info struct {
	ID        string `json:"id"`
	Label     string `json:"label,omitempty"`
	CreatedAt int64  `json:"created_at"`
	Messages  int    `json:"messages"`
	Visible   int    `json:"visible"`
}

// Manager owns every session and the archive they journal to.
//
// All methods are safe for concurrent use.
type Manager struct {
	archive        storage.Archive
	reducer        *console.Reducer
	consoleOpts    []console.Option
	defaults       types.Filters
	compactOnClear bool
	metrics        *metrics.Registry
	logger         *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds a Manager over archive and rebuilds every archived
// session by replaying its journal.
func NewManager(archive storage.Archive, opts ...Option) (*Manager, error) {
	if archive == nil {
		return nil, errors.New("session: archive must not be nil")
	}
	m := &Manager{
		archive:  archive,
		defaults: filters.Default(),
		logger:   slog.Default(),
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	m.reducer = console.NewReducer(append([]console.Option{console.WithLogger(m.logger)}, m.consoleOpts...)...)

	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// load replays every archived journal.
func (m *Manager) load() error {
	metas, err := m.archive.ListSessions()
	if err != nil {
		return fmt.Errorf("session: list archived sessions: %w", err)
	}
	for _, meta := range metas {
		s := m.newSession(meta)
		replayed, skipped := 0, 0
		err := m.archive.ForEach(meta.ID, func(seq uint64, a types.Action) error {
			fs := filters.Reduce(s.filters, a)
			next, err := m.reducer.Reduce(s.state, a, fs)
			if err != nil {
				// The action was accepted once; a config change can make it
				// invalid now. Skip it rather than lose the session.
				m.logger.Warn("journal entry rejected on replay",
					"session", meta.ID, "seq", seq, "action", a.Type, "err", err)
				skipped++
				s.seq = seq
				return nil
			}
			s.state, s.filters, s.seq = next, fs, seq
			replayed++
			return nil
		})
		if err != nil {
			return fmt.Errorf("session: replay %s: %w", meta.ID, err)
		}
		m.sessions[meta.ID] = s
		m.metrics.SessionOpened()
		m.metrics.Projection(meta.ID, len(s.state.VisibleMessages()), s.state.FilteredMessagesCount())
		m.logger.Info("session restored",
			"session", meta.ID, "actions", replayed, "skipped", skipped, "messages", s.state.Len())
	}
	return nil
}

func (m *Manager) newSession(meta storage.SessionMeta) *Session {
	return &Session{
		meta:    meta,
		mgr:     m,
		state:   console.NewState(),
		filters: m.defaults,
		subs:    make(map[int]chan Update),
	}
}

// Create registers a new, empty session.
func (m *Manager) Create(label string) (*Session, error) {
	id, err := node.NewID()
	if err != nil {
		return nil, fmt.Errorf("session: generate id: %w", err)
	}
	meta := storage.SessionMeta{ID: id, Label: label, CreatedAt: time.Now().UnixMilli()}
	if err := m.archive.CreateSession(meta); err != nil {
		return nil, fmt.Errorf("session: archive %s: %w", id, err)
	}

	s := m.newSession(meta)
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.metrics.SessionOpened()
	m.logger.Info("session created", "session", id, "label", label)
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// List returns every session ordered by id (creation order).
func (m *Manager) List() []Info {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	out := make([]Info, 0, len(all))
	for _, s := range all {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes a session and its journal and disconnects its subscribers.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.close()
	if err := m.archive.DeleteSession(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("session: delete journal %s: %w", id, err)
	}
	m.metrics.SessionClosed(id)
	m.logger.Info("session deleted", "session", id)
	return nil
}

// Dispatch is a shorthand for Get followed by Session.Dispatch.
func (m *Manager) Dispatch(ctx context.Context, id string, a types.Action) (Snapshot, error) {
	s, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Dispatch(ctx, a)
}

// Close disconnects every subscriber. The archive is owned by the caller.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.close()
	}
}
