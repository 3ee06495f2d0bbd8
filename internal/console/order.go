package console

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/snehjoshi/replayconsole/internal/point"
	"github.com/snehjoshi/replayconsole/internal/types"
)

// ensureExecutionPoint gives m a LastExecutionPoint when the runtime did not
// supply a genuine point.
func (b *builder) ensureExecutionPoint(m *types.Message) error {
	if m.ExecutionPoint != "" {
		if m.ExecutionPointTime == nil {
			return fmt.Errorf("%w: message %s has execution point %s but no time", ErrInvariant, m.ID, m.ExecutionPoint)
		}
		m.LastExecutionPoint = nil
		return nil
	}

	s := b.s
	lp := types.LastExecutionPoint{Point: point.Zero, MessageCount: 1}
	switch {
	case s.pausedPoint != "":
		lp.Point, lp.Time = s.pausedPoint, s.pausedTime
		if last := b.lastSynthesizedAt(s.pausedPoint); last != nil {
			lp.MessageCount = last.LastExecutionPoint.MessageCount + 1
		}
	case len(s.visible) > 0:
		last := s.messages[s.visible[len(s.visible)-1]]
		switch {
		case last.ExecutionPoint != "":
			lp = types.LastExecutionPoint{Point: last.ExecutionPoint, Time: *last.ExecutionPointTime}
		case last.LastExecutionPoint != nil:
			lp = *last.LastExecutionPoint
			lp.MessageCount++
		}
	}
	m.LastExecutionPoint = &lp
	return nil
}

// lastSynthesizedAt returns the last visible message whose ordering key was
// synthesized at p.
func (b *builder) lastSynthesizedAt(p string) *types.Message {
	s := b.s
	for i := len(s.visible) - 1; i >= 0; i-- {
		m := s.messages[s.visible[i]]
		if m.ExecutionPoint == "" && m.LastExecutionPoint != nil && point.Equal(m.LastExecutionPoint.Point, p) {
			return m
		}
	}
	return nil
}

// sortVisible restores execution order of the projection once any message
// carried a genuine point. interleave additionally moves warning-group
// members next to their header.
func (b *builder) sortVisible(interleave bool) {
	s := b.s
	if s.hasExecutionPoints {
		slices.SortStableFunc(s.visible, b.compareExecutionOrder)
	}
	if interleave && len(s.warningGroups) > 0 {
		slices.SortStableFunc(s.visible, b.compareWarningInterleave)
	}
}

func orderingKey(m *types.Message) (string, int) {
	if m.ExecutionPoint != "" {
		return m.ExecutionPoint, 0
	}
	if m.LastExecutionPoint != nil {
		return m.LastExecutionPoint.Point, m.LastExecutionPoint.MessageCount
	}
	return point.Zero, 0
}

func (b *builder) compareExecutionOrder(x, y string) int {
	s := b.s
	mx, my := s.messages[x], s.messages[y]
	px, cx := orderingKey(mx)
	py, cy := orderingKey(my)
	if c := b.r.compare(px, py); c != 0 {
		return c
	}
	if c := cmp.Compare(cx, cy); c != 0 {
		return c
	}
	if c := cmp.Compare(s.seq[x], s.seq[y]); c != 0 {
		return c
	}
	return compareIDs(x, y)
}

// compareWarningInterleave orders a member of a warning group by its header's
// position, so members follow the header instead of where they were logged.
func (b *builder) compareWarningInterleave(x, y string) int {
	s := b.s
	mx, my := s.messages[x], s.messages[y]
	gx, gy := s.messages[WarningGroupID(mx)], s.messages[WarningGroupID(my)]

	switch {
	case (gx == nil) == (gy == nil):
		return naturalOrder(mx, my)
	case gx != nil:
		if gx.ID == my.ID {
			return 1
		}
		return naturalOrder(gx, my)
	default:
		if gy.ID == mx.ID {
			return -1
		}
		return naturalOrder(mx, gy)
	}
}

// naturalOrder orders by timestamp, then by numeric id.
func naturalOrder(a, b *types.Message) int {
	if c := cmp.Compare(a.TimeStamp, b.TimeStamp); c != 0 {
		return c
	}
	return compareIDs(a.ID, b.ID)
}

func compareIDs(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA != nil || errB != nil {
		return 0
	}
	return cmp.Compare(na, nb)
}
