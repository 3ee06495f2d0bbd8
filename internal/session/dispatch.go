package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/snehjoshi/replayconsole/internal/console"
	"github.com/snehjoshi/replayconsole/internal/filters"
	"github.com/snehjoshi/replayconsole/internal/storage"
	"github.com/snehjoshi/replayconsole/internal/types"
)

// Snapshot is the state of a session after a given journal entry.
type Snapshot struct {
	State   *console.State
	Filters types.Filters
	// Seq is the journal sequence number of the last applied action.
	Seq uint64
}

// Update is published to subscribers after every applied action.
type Update struct {
	Session  string                `json:"session"`
	Seq      uint64                `json:"seq"`
	Action   types.ActionType      `json:"action"`
	Visible  []string              `json:"visible"`
	Filtered console.FilteredCount `json:"filtered"`
	Filters  types.Filters         `json:"filters"`
	// Messages holds the messages that became visible with this action.
	Messages []*types.Message `json:"messages,omitempty"`
}

// Session is one console store. Dispatch is its sequential action queue: a
// mutex serialises actions so no two batches interleave.
type Session struct {
	meta storage.SessionMeta
	mgr  *Manager

	mu      sync.Mutex
	state   *console.State
	filters types.Filters
	seq     uint64
	closed  bool
	subs    map[int]chan Update
	nextSub int
}

// ID returns the session id.
func (s *Session) ID() string { return s.meta.ID }

// Info summarises the session.
func (s *Session) Info() Info {
	snap := s.Snapshot()
	return Info{
		ID:        s.meta.ID,
		Label:     s.meta.Label,
		CreatedAt: s.meta.CreatedAt,
		Messages:  snap.State.Len(),
		Visible:   len(snap.State.VisibleMessages()),
	}
}

// Snapshot returns the current state. The state is immutable and may be read
// without further locking.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Filters: s.filters, Seq: s.seq}
}

// Dispatch applies a to the session. The filters reducer runs first and the
// console reducer sees its result. Actions that change anything are journaled
// before they become visible to readers; if the journal write fails the state
// is left as it was.
func (s *Session) Dispatch(ctx context.Context, a types.Action) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m := s.mgr

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrClosed, s.meta.ID)
	}

	prev, prevFilters := s.state, s.filters
	nextFilters := filters.Reduce(prevFilters, a)
	next, err := m.reducer.Reduce(prev, a, nextFilters)
	if err != nil {
		m.metrics.Dispatch(string(a.Type), "error")
		return Snapshot{}, fmt.Errorf("session %s: %s: %w", s.meta.ID, a.Type, err)
	}
	if next == prev && nextFilters == prevFilters {
		m.metrics.Dispatch(string(a.Type), "unchanged")
		return Snapshot{State: prev, Filters: prevFilters, Seq: s.seq}, nil
	}

	seq, err := m.archive.Append(s.meta.ID, a)
	if err != nil {
		m.metrics.Dispatch(string(a.Type), "error")
		return Snapshot{}, fmt.Errorf("session %s: journal %s: %w", s.meta.ID, a.Type, err)
	}
	if a.Type == types.ActionMessagesClear && m.compactOnClear {
		n, err := m.archive.Compact(s.meta.ID, seq, keepAcrossClear)
		if err != nil {
			m.logger.Warn("journal compaction failed", "session", s.meta.ID, "err", err)
		} else {
			m.logger.Debug("journal compacted", "session", s.meta.ID, "removed", n)
		}
	}

	s.state, s.filters, s.seq = next, nextFilters, seq
	m.metrics.Dispatch(string(a.Type), "applied")

	added, removed, shown := diff(prev, next)
	m.metrics.StoreDelta(s.meta.ID, added, removed)
	visible := next.VisibleMessages()
	filtered := next.FilteredMessagesCount()
	m.metrics.Projection(s.meta.ID, len(visible), filtered)

	s.publish(Update{
		Session:  s.meta.ID,
		Seq:      seq,
		Action:   a.Type,
		Visible:  visible,
		Filtered: filtered,
		Filters:  nextFilters,
		Messages: shown,
	})
	return Snapshot{State: next, Filters: nextFilters, Seq: seq}, nil
}

// keepAcrossClear reports whether a journal entry still matters after
// MESSAGES_CLEAR. Only the filter state survives a clear.
func keepAcrossClear(a types.Action) bool {
	return a.Type.IsFilterChange()
}

// diff counts stored ids that appeared and disappeared and returns the
// messages that became visible.
func diff(prev, next *console.State) (added, removed int, shown []*types.Message) {
	before := make(map[string]struct{}, prev.Len())
	for _, id := range prev.IDs() {
		before[id] = struct{}{}
	}
	for _, id := range next.IDs() {
		if _, ok := before[id]; ok {
			delete(before, id)
			continue
		}
		added++
	}
	removed = len(before)

	wasVisible := make(map[string]struct{})
	for _, id := range prev.VisibleMessages() {
		wasVisible[id] = struct{}{}
	}
	for _, id := range next.VisibleMessages() {
		if _, ok := wasVisible[id]; ok {
			continue
		}
		if m, ok := next.Message(id); ok {
			shown = append(shown, m)
		}
	}
	return added, removed, shown
}

// ─── Subscribers ──────────────────────────────────────────────────────────────

// Subscribe returns a channel receiving every Update and a function that
// cancels the subscription. A subscriber that falls more than buffer updates
// behind loses updates; the next one it receives carries the full visible
// list, so it can resynchronise.
func (s *Session) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Update, buffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// publish must be called with s.mu held.
func (s *Session) publish(u Update) {
	for id, ch := range s.subs {
		select {
		case ch <- u:
		default:
			s.mgr.logger.Warn("subscriber lagging, update dropped", "session", s.meta.ID, "subscriber", id, "seq", u.Seq)
		}
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
