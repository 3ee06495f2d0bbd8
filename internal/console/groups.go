package console

import (
	"slices"

	"github.com/snehjoshi/replayconsole/internal/types"
)

// parentGroups returns the chain of group ids enclosing a message whose
// GroupID is groupID, innermost first.
func parentGroups(groupID string, groups map[string][]string) []string {
	if groupID == "" {
		return nil
	}
	return append([]string{groupID}, groups[groupID]...)
}

// outermostGroup returns the top-level console.group enclosing m, or "".
func outermostGroup(m *types.Message, groups map[string][]string) string {
	chain := parentGroups(m.GroupID, groups)
	if len(chain) == 0 {
		return ""
	}
	return chain[len(chain)-1]
}

// newCurrentGroup returns the group that becomes current when current is
// closed: its nearest ancestor not in ignored.
func newCurrentGroup(current string, groups map[string][]string, ignored map[string]struct{}) string {
	for current != "" {
		parents := groups[current]
		if len(parents) == 0 {
			return ""
		}
		if _, skip := ignored[parents[0]]; !skip {
			return parents[0]
		}
		current = parents[0]
	}
	return ""
}

// inOpenedGroup reports whether every group enclosing m is expanded.
func (s *State) inOpenedGroup(m *types.Message) bool {
	if m.GroupID == "" {
		return true
	}
	if !s.isOpen(m.GroupID) {
		return false
	}
	for _, id := range s.groups[m.GroupID] {
		if !s.isOpen(id) {
			return false
		}
	}
	return true
}

// open expands id. Children of a group or warning group that are now visible
// are inserted right after it, in insertion order.
func (b *builder) open(id string) {
	s := b.s
	s.open[id] = struct{}{}

	cur := s.messages[id]
	isGroup := cur.Type.IsGroupStart()
	isWarningGroup := cur.Type.IsWarningGroup()
	if !isGroup && !isWarningGroup {
		return
	}
	at := slices.Index(s.visible, id)
	if at < 0 {
		return
	}

	shown := make(map[string]struct{}, len(s.visible))
	for _, v := range s.visible {
		shown[v] = struct{}{}
	}
	var children []string
	for _, mid := range s.order {
		if _, ok := shown[mid]; ok {
			continue
		}
		m := s.messages[mid]
		related := (isWarningGroup && WarningGroupID(m) == id) ||
			(isGroup && slices.Contains(parentGroups(m.GroupID, s.groups), id))
		if !related {
			continue
		}
		if b.eval.visibility(m, m.GroupID != id, true, 0).Visible {
			children = append(children, mid)
		}
	}
	s.visible = slices.Insert(s.visible, at+1, children...)
}

// close collapses id and drops its descendants from the projection. Members
// of an active warning group stay, since the warning group decides their
// visibility.
func (b *builder) close(id string) {
	s := b.s
	delete(s.open, id)

	cur := s.messages[id]
	switch {
	case cur.Type.IsGroupStart():
		s.visible = slices.DeleteFunc(s.visible, func(vid string) bool {
			m := s.messages[vid]
			if s.shouldGroupWarnings(s.messages[WarningGroupID(m)]) {
				return false
			}
			return slices.Contains(parentGroups(m.GroupID, s.groups), id)
		})
	case cur.Type.IsWarningGroup():
		members := s.warningGroups[id]
		s.visible = slices.DeleteFunc(s.visible, func(vid string) bool {
			return slices.Contains(members, vid)
		})
	}
}
