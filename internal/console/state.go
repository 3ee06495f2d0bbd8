// Package console is the console message store: the state machine that decides
// which console messages exist, how they are grouped and ordered, and which of
// them are currently visible.
//
// State is an immutable snapshot. Reducer.Reduce never modifies the snapshot it
// is given; each dispatch works on a private builder copy that is committed as
// the next snapshot when the action has been applied in full.
package console

import (
	"encoding/json"
	"maps"
	"slices"
	"sort"

	"github.com/snehjoshi/replayconsole/internal/filters"
	"github.com/snehjoshi/replayconsole/internal/types"
)

// FilteredCount maps a hidden cause to the number of messages it hid. The
// Global key holds the total.
type FilteredCount map[string]int

// Global is the FilteredCount key holding the total of all counted causes.
const Global = "global"

func newFilteredCount() FilteredCount {
	fc := make(FilteredCount, len(filters.CountedCauses)+1)
	for _, c := range filters.CountedCauses {
		fc[c] = 0
	}
	fc[Global] = 0
	return fc
}

// State is one snapshot of the message store.
type State struct {
	// messages holds every stored message. Values are never modified after
	// insertion and are shared between snapshots.
	messages map[string]*types.Message
	// order is the insertion order of messages. Eviction and full
	// re-projection walk it.
	order []string
	seq   map[string]uint64
	next  uint64

	// payloads holds data fetched lazily after a message was received.
	payloads map[string]json.RawMessage

	// visible is the render projection, in display order.
	visible  []string
	filtered FilteredCount
	// hiddenBy holds the counted cause of every message in filtered.
	hiddenBy map[string]Cause

	// open holds the ids of expanded groups, warning groups and traces.
	open map[string]struct{}

	// groups maps a console.group id to its ancestor chain, nearest first.
	groups       map[string][]string
	currentGroup string

	// warningGroups maps a warning-group header id to its members.
	warningGroups map[string][]string

	// logpoints maps "logpointID:executionPoint" to the latest message with
	// that key.
	logpoints        map[string]*types.Message
	removedLogpoints map[string]struct{}

	pausedPoint string
	pausedTime  float64

	hasExecutionPoints bool
	lastMessageID      string
}

// NewState returns an empty store.
func NewState() *State {
	return &State{
		messages:         make(map[string]*types.Message),
		seq:              make(map[string]uint64),
		payloads:         make(map[string]json.RawMessage),
		filtered:         newFilteredCount(),
		hiddenBy:         make(map[string]Cause),
		open:             make(map[string]struct{}),
		groups:           make(map[string][]string),
		warningGroups:    make(map[string][]string),
		logpoints:        make(map[string]*types.Message),
		removedLogpoints: make(map[string]struct{}),
	}
}

// clone copies every container so the copy can be edited without affecting s.
// Slice values inside groups and warningGroups stay shared and must be
// replaced, never appended to in place.
func (s *State) clone() *State {
	return &State{
		messages:           maps.Clone(s.messages),
		order:              slices.Clone(s.order),
		seq:                maps.Clone(s.seq),
		next:               s.next,
		payloads:           maps.Clone(s.payloads),
		visible:            slices.Clone(s.visible),
		filtered:           maps.Clone(s.filtered),
		hiddenBy:           maps.Clone(s.hiddenBy),
		open:               maps.Clone(s.open),
		groups:             maps.Clone(s.groups),
		currentGroup:       s.currentGroup,
		warningGroups:      maps.Clone(s.warningGroups),
		logpoints:          maps.Clone(s.logpoints),
		removedLogpoints:   maps.Clone(s.removedLogpoints),
		pausedPoint:        s.pausedPoint,
		pausedTime:         s.pausedTime,
		hasExecutionPoints: s.hasExecutionPoints,
		lastMessageID:      s.lastMessageID,
	}
}

func (s *State) isOpen(id string) bool {
	_, ok := s.open[id]
	return ok
}

// ─── Selectors ────────────────────────────────────────────────────────────────

// VisibleMessages returns the ids to render, in display order.
func (s *State) VisibleMessages() []string {
	return slices.Clone(s.visible)
}

// Message returns a copy of the stored message with the given id.
func (s *State) Message(id string) (*types.Message, bool) {
	m, ok := s.messages[id]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// Messages returns copies of all stored messages in insertion order.
func (s *State) Messages() []*types.Message {
	out := make([]*types.Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.messages[id].Clone())
	}
	return out
}

// IDs returns the ids of all stored messages in insertion order.
func (s *State) IDs() []string {
	return slices.Clone(s.order)
}

// Len returns the number of stored messages.
func (s *State) Len() int { return len(s.messages) }

// TopLevelCount returns the number of stored messages outside any console.group.
func (s *State) TopLevelCount() int {
	n := 0
	for _, m := range s.messages {
		if m.GroupID == "" {
			n++
		}
	}
	return n
}

// Payload returns the lazily populated data attached to a message.
func (s *State) Payload(id string) (json.RawMessage, bool) {
	p, ok := s.payloads[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(p), true
}

// FilteredMessagesCount returns how many messages each filter currently hides.
func (s *State) FilteredMessagesCount() FilteredCount {
	return maps.Clone(s.filtered)
}

// IsOpen reports whether a group, warning group or trace is expanded.
func (s *State) IsOpen(id string) bool { return s.isOpen(id) }

// OpenMessages returns the ids of all expanded messages, sorted.
func (s *State) OpenMessages() []string {
	ids := make([]string, 0, len(s.open))
	for id := range s.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GroupsByID returns each console.group id mapped to its ancestor chain,
// nearest ancestor first.
func (s *State) GroupsByID() map[string][]string {
	out := make(map[string][]string, len(s.groups))
	for k, v := range s.groups {
		out[k] = slices.Clone(v)
	}
	return out
}

// CurrentGroup returns the innermost console.group still open for new
// messages, or "".
func (s *State) CurrentGroup() string { return s.currentGroup }

// WarningGroupsByID returns each warning-group header id mapped to its members.
func (s *State) WarningGroupsByID() map[string][]string {
	out := make(map[string][]string, len(s.warningGroups))
	for k, v := range s.warningGroups {
		out[k] = slices.Clone(v)
	}
	return out
}

// LogpointMessage returns the id of the latest message logged by logpointID at
// point.
func (s *State) LogpointMessage(logpointID, point string) (string, bool) {
	m, ok := s.logpoints[logpointKey(logpointID, point)]
	if !ok {
		return "", false
	}
	return m.ID, true
}

// IsLogpointRemoved reports whether messages from logpointID are dropped.
func (s *State) IsLogpointRemoved(logpointID string) bool {
	_, ok := s.removedLogpoints[logpointID]
	return ok
}

// PausedExecutionPoint returns the replay pause point and its time. The point
// is "" when not paused.
func (s *State) PausedExecutionPoint() (string, float64) {
	return s.pausedPoint, s.pausedTime
}

// HasExecutionPoints reports whether any message carried a genuine execution
// point. Once set, the visible projection is kept in execution order.
func (s *State) HasExecutionPoints() bool { return s.hasExecutionPoints }

// LastMessageID returns the id of the most recently ingested message.
func (s *State) LastMessageID() string { return s.lastMessageID }

// IsMessageInWarningGroup reports whether m is rendered inside a visible
// warning group.
func IsMessageInWarningGroup(m *types.Message, visible []string) bool {
	id := WarningGroupID(m)
	return id != "" && slices.Contains(visible, id)
}

func logpointKey(logpointID, point string) string {
	return logpointID + ":" + point
}
