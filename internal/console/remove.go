package console

import "slices"

// remove deletes ids from the store and purges every reference to them.
func (b *builder) remove(ids []string) {
	if len(ids) == 0 {
		return
	}
	s := b.s
	gone := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}
	isGone := func(id string) bool {
		_, ok := gone[id]
		return ok
	}

	if isGone(s.currentGroup) {
		s.currentGroup = newCurrentGroup(s.currentGroup, s.groups, gone)
	}

	for _, id := range ids {
		b.uncountHidden(id)
	}

	s.visible = slices.DeleteFunc(s.visible, isGone)
	s.order = slices.DeleteFunc(s.order, isGone)
	for _, id := range ids {
		delete(s.messages, id)
		delete(s.seq, id)
		delete(s.payloads, id)
		delete(s.open, id)
		delete(s.groups, id)
		delete(s.warningGroups, id)
	}
	for k, chain := range s.groups {
		if slices.ContainsFunc(chain, isGone) {
			s.groups[k] = slices.DeleteFunc(slices.Clone(chain), isGone)
		}
	}
	for k, members := range s.warningGroups {
		if slices.ContainsFunc(members, isGone) {
			s.warningGroups[k] = slices.DeleteFunc(slices.Clone(members), isGone)
		}
	}
	for k, m := range s.logpoints {
		if isGone(m.ID) {
			delete(s.logpoints, k)
		}
	}
}

// limitTopLevelMessageCount evicts the oldest messages until at most logLimit
// remain outside any group. Evicting a group evicts the messages logged inside
// it.
func (b *builder) limitTopLevelMessageCount() {
	s := b.s
	limit := b.r.logLimit

	top := len(s.messages)
	if len(s.groups) > 0 {
		top = s.TopLevelCount()
	}
	if top <= limit {
		return
	}

	var evict []string
	cleaning := false
	for _, id := range s.order {
		m := s.messages[id]
		if cleaning && m.GroupID == "" {
			cleaning = false
		}
		if !cleaning && top <= limit {
			break
		}
		if !cleaning {
			if _, isGroup := s.groups[id]; isGroup {
				cleaning = true
			}
		}
		if m.GroupID == "" {
			top--
		}
		evict = append(evict, id)
	}
	b.r.logger.Debug("messages evicted", "count", len(evict), "limit", limit)
	b.remove(evict)
}
