// Package storage defines the Archive abstraction sessions journal through.
//
// Design principle: the session layer (and every layer above it) must ONLY
// interact with persistence through this interface. Never call file I/O
// directly. A console is rebuilt by replaying its journal through the reducer,
// so the journal is the only durable state.
package storage

import (
	"errors"

	"github.com/snehjoshi/replayconsole/internal/types"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrExists is returned by CreateSession for an id that is already taken.
var ErrExists = errors.New("storage: already exists")

// SessionMeta describes one recorded console session.
type SessionMeta struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	// CreatedAt is the UTC millisecond the session was created.
	CreatedAt int64 `json:"created_at"`
}

// Archive persists session metadata and each session's action journal.
//
// Implementations:
//   - local.Archive: single-file bbolt database
//   - memory.Archive: in-process maps, nothing survives a restart
//
// All methods must be safe for concurrent use.
type Archive interface {
	// CreateSession registers a new session with an empty journal.
	// Returns ErrExists if meta.ID is already registered.
	CreateSession(meta SessionMeta) error

	// ListSessions returns every registered session ordered by id.
	ListSessions() ([]SessionMeta, error)

	// DeleteSession removes a session and its journal.
	// Returns ErrNotFound if the session does not exist.
	DeleteSession(id string) error

	// Append adds an action to the end of a session's journal and returns
	// its sequence number. Sequence numbers start at 1 and only grow.
	Append(sessionID string, a types.Action) (seq uint64, err error)

	// ForEach calls fn for every journaled action in sequence order.
	// Iteration stops if fn returns a non-nil error.
	ForEach(sessionID string, fn func(seq uint64, a types.Action) error) error

	// Compact deletes journal entries with a sequence number below before,
	// except those for which keep returns true. It returns how many entries
	// were deleted.
	Compact(sessionID string, before uint64, keep func(types.Action) bool) (int, error)

	// Close releases every resource held by the archive.
	Close() error
}
