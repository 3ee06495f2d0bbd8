package console

import (
	"fmt"
	"slices"

	"github.com/snehjoshi/replayconsole/internal/types"
)

// maxSynthetic bounds how many synthetic messages one ingest may queue ahead
// of the real one.
const maxSynthetic = 1

// addMessage ingests one message of a MESSAGES_ADD batch.
func (b *builder) addMessage(in types.Message) error {
	s := b.s
	if in.Type == types.TypeNull {
		return nil
	}
	if in.LogpointID != "" {
		if _, gone := s.removedLogpoints[in.LogpointID]; gone {
			return nil
		}
	}
	if in.Type == types.TypeEndGroup {
		s.currentGroup = newCurrentGroup(s.currentGroup, s.groups, nil)
		return nil
	}

	work, err := b.worklist(in.Clone())
	if err != nil {
		return err
	}
	for _, w := range work {
		if err := b.insert(w); err != nil {
			return err
		}
	}
	return nil
}

// worklist returns the messages one ingest inserts, in order: the synthetic
// messages m needs first, then m itself.
func (b *builder) worklist(m *types.Message) ([]*types.Message, error) {
	var synthetic []*types.Message
	if id := WarningGroupID(m); id != "" {
		if _, ok := b.s.messages[id]; !ok {
			synthetic = append(synthetic, newWarningGroupMessage(id, m))
		}
	}
	if len(synthetic) > maxSynthetic {
		return nil, fmt.Errorf("%w: %d synthetic messages queued for message %s", ErrInvariant, len(synthetic), m.ID)
	}
	return append(synthetic, m), nil
}

// insert links m into every index and the visible projection.
func (b *builder) insert(m *types.Message) error {
	s := b.s
	s.lastMessageID = m.ID

	chain := parentGroups(s.currentGroup, s.groups)
	if !m.Type.IsWarningGroup() {
		m.GroupID = s.currentGroup
		m.Indent = len(chain)
	}

	if err := b.ensureExecutionPoint(m); err != nil {
		return err
	}
	if m.ExecutionPoint != "" {
		s.hasExecutionPoints = true
	}

	var superseded []string
	if m.LogpointID != "" {
		key := logpointKey(m.LogpointID, m.ExecutionPoint)
		if prev, ok := s.logpoints[key]; ok {
			b.r.logger.Debug("logpoint finish", "logpoint", m.LogpointID, "point", m.ExecutionPoint, "id", m.ID, "replaces", prev.ID)
			if prev.ID != m.ID {
				superseded = append(superseded, prev.ID)
			}
		} else {
			b.r.logger.Debug("logpoint start", "logpoint", m.LogpointID, "point", m.ExecutionPoint, "id", m.ID)
		}
		s.logpoints[key] = m
	}

	if headerID := WarningGroupID(m); headerID != "" {
		header, ok := s.messages[headerID]
		if !ok {
			return fmt.Errorf("%w: warning group %s missing for message %s", ErrInvariant, headerID, m.ID)
		}
		s.warningGroups[headerID] = append(slices.Clip(s.warningGroups[headerID]), m.ID)
		if !slices.Contains(s.visible, headerID) && b.visibility(header).Visible {
			b.showWarningGroup(headerID, m)
		}
	}
	if m.Type.IsWarningGroup() {
		s.warningGroups[m.ID] = []string{}
	}

	b.store(m)

	switch {
	case m.Type == types.TypeTrace:
		s.open[m.ID] = struct{}{}
	case m.Type.IsGroupStart():
		s.currentGroup = m.ID
		s.groups[m.ID] = chain
		if m.Type == types.TypeStartGroup {
			s.open[m.ID] = struct{}{}
		}
	}

	if res := b.visibility(m); res.Visible {
		b.uncountHidden(m.ID)
		b.appendVisible(m)
		b.sortVisible(false)
	} else {
		b.countHidden(m.ID, res.Cause)
	}

	b.remove(superseded)
	return nil
}

func (b *builder) store(m *types.Message) {
	s := b.s
	if _, ok := s.messages[m.ID]; !ok {
		s.order = append(s.order, m.ID)
		s.next++
		s.seq[m.ID] = s.next
	}
	s.messages[m.ID] = m
}

// appendVisible adds m to the projection: right after the last visible member
// of its warning group when that group is shown, at the end otherwise.
func (b *builder) appendVisible(m *types.Message) {
	s := b.s
	if slices.Contains(s.visible, m.ID) {
		return
	}
	headerID := WarningGroupID(m)
	at := -1
	if headerID != "" {
		at = slices.Index(s.visible, headerID)
	}
	if at < 0 {
		s.visible = append(s.visible, m.ID)
		return
	}
	members := s.warningGroups[headerID]
	for i := len(members) - 1; i >= 0; i-- {
		if j := slices.Index(s.visible, members[i]); j >= 0 {
			at = j
			break
		}
	}
	s.visible = slices.Insert(s.visible, at+1, m.ID)
}

// showWarningGroup puts a header that just became visible into the projection.
// It goes before the outermost console.group holding its first member if that
// group is visible, or takes the first member's place otherwise.
func (b *builder) showWarningGroup(headerID string, current *types.Message) {
	s := b.s
	firstID := s.warningGroups[headerID][0]
	first, ok := s.messages[firstID]
	if !ok {
		first = current
	}

	memberAt := slices.Index(s.visible, firstID)
	if outer := outermostGroup(first, s.groups); outer != "" {
		if groupAt := slices.Index(s.visible, outer); groupAt >= 0 {
			if memberAt >= 0 {
				s.visible = slices.Delete(s.visible, memberAt, memberAt+1)
				if memberAt < groupAt {
					groupAt--
				}
			}
			s.visible = slices.Insert(s.visible, groupAt, headerID)
			return
		}
	}
	if memberAt < 0 {
		s.visible = append(s.visible, headerID)
		return
	}
	s.visible[memberAt] = headerID
}
