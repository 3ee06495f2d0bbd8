// Package memory is an in-process storage.Archive. It backs tests and servers
// running with persistence disabled.
package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/snehjoshi/replayconsole/internal/storage"
	"github.com/snehjoshi/replayconsole/internal/types"
)

type entry struct {
	seq    uint64
	action []byte
}

type journal struct {
	meta    storage.SessionMeta
	entries []entry
	lastSeq uint64
}

// Archive keeps sessions in maps guarded by a mutex.
type Archive struct {
	mu       sync.Mutex
	sessions map[string]*journal
}

var _ storage.Archive = (*Archive)(nil)

// New returns an empty Archive.
func New() *Archive {
	return &Archive{sessions: make(map[string]*journal)}
}

func (a *Archive) CreateSession(meta storage.SessionMeta) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sessions[meta.ID]; ok {
		return fmt.Errorf("memory: session %s: %w", meta.ID, storage.ErrExists)
	}
	a.sessions[meta.ID] = &journal{meta: meta}
	return nil
}

func (a *Archive) ListSessions() ([]storage.SessionMeta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]storage.SessionMeta, 0, len(a.sessions))
	for _, j := range a.sessions {
		out = append(out, j.meta)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (a *Archive) DeleteSession(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sessions[id]; !ok {
		return fmt.Errorf("memory: session %s: %w", id, storage.ErrNotFound)
	}
	delete(a.sessions, id)
	return nil
}

// Append stores a JSON copy of act so later changes by the caller are not
// observed.
func (a *Archive) Append(sessionID string, act types.Action) (uint64, error) {
	raw, err := json.Marshal(act)
	if err != nil {
		return 0, fmt.Errorf("memory: marshal action: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	j, ok := a.sessions[sessionID]
	if !ok {
		return 0, fmt.Errorf("memory: session %s: %w", sessionID, storage.ErrNotFound)
	}
	j.lastSeq++
	j.entries = append(j.entries, entry{seq: j.lastSeq, action: raw})
	return j.lastSeq, nil
}

func (a *Archive) ForEach(sessionID string, fn func(seq uint64, act types.Action) error) error {
	a.mu.Lock()
	j, ok := a.sessions[sessionID]
	var entries []entry
	if ok {
		entries = append(entries, j.entries...)
	}
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("memory: session %s: %w", sessionID, storage.ErrNotFound)
	}

	for _, e := range entries {
		var act types.Action
		if err := json.Unmarshal(e.action, &act); err != nil {
			return fmt.Errorf("memory: decode entry %d: %w", e.seq, err)
		}
		if err := fn(e.seq, act); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) Compact(sessionID string, before uint64, keep func(types.Action) bool) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	j, ok := a.sessions[sessionID]
	if !ok {
		return 0, fmt.Errorf("memory: session %s: %w", sessionID, storage.ErrNotFound)
	}
	kept := j.entries[:0:0]
	removed := 0
	for _, e := range j.entries {
		if e.seq < before {
			var act types.Action
			if err := json.Unmarshal(e.action, &act); err != nil {
				return 0, fmt.Errorf("memory: decode entry %d: %w", e.seq, err)
			}
			if keep == nil || !keep(act) {
				removed++
				continue
			}
		}
		kept = append(kept, e)
	}
	j.entries = kept
	return removed, nil
}

func (a *Archive) Close() error { return nil }
