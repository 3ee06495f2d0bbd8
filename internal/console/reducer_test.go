package console_test

import (
	"errors"
	"slices"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/snehjoshi/replayconsole/internal/console"
	"github.com/snehjoshi/replayconsole/internal/filters"
	"github.com/snehjoshi/replayconsole/internal/types"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

func logMsg(id string) types.Message {
	return types.Message{
		ID:          id,
		Type:        types.TypeLog,
		Level:       types.LevelLog,
		Source:      types.SourceConsoleAPI,
		TimeStamp:   float64(len(id)),
		MessageText: &types.MessageText{Text: "message " + id},
	}
}

func typed(id string, t types.MessageType) types.Message {
	m := logMsg(id)
	m.Type = t
	return m
}

func atPoint(m types.Message, p string, t float64) types.Message {
	m.ExecutionPoint = p
	m.ExecutionPointTime = &t
	return m
}

func corsWarning(id, window string) types.Message {
	return types.Message{
		ID:            id,
		Type:          types.TypeLog,
		Level:         types.LevelError,
		Source:        types.SourceJavaScript,
		Category:      "CORS",
		InnerWindowID: window,
		MessageText:   &types.MessageText{Text: "cross-origin request blocked " + id},
	}
}

// store pairs a reducer with the filters reducer the way a session does.
type store struct {
	t       *testing.T
	r       *console.Reducer
	state   *console.State
	filters types.Filters
}

func newStore(t *testing.T, opts ...console.Option) *store {
	t.Helper()
	return &store{t: t, r: console.NewReducer(opts...), state: console.NewState(), filters: filters.Default()}
}

func (s *store) dispatch(a types.Action) *console.State {
	s.t.Helper()
	s.filters = filters.Reduce(s.filters, a)
	next, err := s.r.Reduce(s.state, a, s.filters)
	if err != nil {
		s.t.Fatalf("Reduce(%s): %v", a.Type, err)
	}
	s.state = next
	return next
}

func (s *store) add(msgs ...types.Message) *console.State {
	s.t.Helper()
	return s.dispatch(types.AddMessages(msgs...))
}

func wantVisible(t *testing.T, st *console.State, want ...string) {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	got := st.VisibleMessages()
	if got == nil {
		got = []string{}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("visible messages mismatch (-want +got):\n%s", diff)
	}
}

// ─── Groups ──────────────────────────────────────────────────────────────────

func TestGroup_StartLogEnd(t *testing.T) {
	s := newStore(t)
	st := s.add(typed("1", types.TypeStartGroup), logMsg("2"), typed("3", types.TypeEndGroup))

	wantVisible(t, st, "1", "2")
	if _, ok := st.GroupsByID()["2"]; ok {
		t.Error("message 2 must not be recorded as a group")
	}
	m, ok := st.Message("2")
	if !ok {
		t.Fatal("message 2 not stored")
	}
	if m.GroupID != "1" || m.Indent != 1 {
		t.Errorf("message 2: want groupId=1 indent=1, got groupId=%q indent=%d", m.GroupID, m.Indent)
	}
	if _, ok := st.Message("3"); ok {
		t.Error("endGroup must not be stored")
	}
	if st.CurrentGroup() != "" {
		t.Errorf("current group: want none, got %q", st.CurrentGroup())
	}

	st = s.dispatch(types.CloseMessage("1"))
	wantVisible(t, st, "1")
}

func TestGroup_Nested(t *testing.T) {
	s := newStore(t)
	st := s.add(
		typed("1", types.TypeStartGroup),
		typed("2", types.TypeStartGroup),
		logMsg("3"),
		typed("e1", types.TypeEndGroup),
		logMsg("4"),
		typed("e2", types.TypeEndGroup),
		logMsg("5"),
	)
	if diff := cmp.Diff(map[string][]string{"1": nil, "2": {"1"}}, st.GroupsByID()); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
	for id, want := range map[string]struct {
		group  string
		indent int
	}{"3": {"2", 2}, "4": {"1", 1}, "5": {"", 0}} {
		m, _ := st.Message(id)
		if m.GroupID != want.group || m.Indent != want.indent {
			t.Errorf("message %s: want group=%q indent=%d, got group=%q indent=%d",
				id, want.group, want.indent, m.GroupID, m.Indent)
		}
	}
	wantVisible(t, st, "1", "2", "3", "4", "5")

	st = s.dispatch(types.CloseMessage("1"))
	wantVisible(t, st, "1", "5")
}

func TestGroup_OpenCloseSymmetry(t *testing.T) {
	s := newStore(t)
	before := s.add(
		typed("1", types.TypeStartGroupCollapsed),
		logMsg("2"),
		logMsg("3"),
		typed("e", types.TypeEndGroup),
		logMsg("4"),
	)
	wantVisible(t, before, "1", "4")

	opened := s.dispatch(types.OpenMessage("1"))
	wantVisible(t, opened, "1", "2", "3", "4")
	if !opened.IsOpen("1") {
		t.Error("group 1 should be open")
	}

	closed := s.dispatch(types.CloseMessage("1"))
	if diff := cmp.Diff(before.VisibleMessages(), closed.VisibleMessages()); diff != "" {
		t.Errorf("open then close changed the projection (-before +after):\n%s", diff)
	}
}

func TestGroup_AutoOpen(t *testing.T) {
	s := newStore(t)
	st := s.add(typed("1", types.TypeStartGroup), typed("2", types.TypeStartGroupCollapsed), typed("3", types.TypeTrace))
	if diff := cmp.Diff([]string{"1", "3"}, st.OpenMessages()); diff != "" {
		t.Errorf("open set mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenClose_MissingIDIsNoop(t *testing.T) {
	s := newStore(t)
	st := s.add(logMsg("1"))
	if got := s.dispatch(types.OpenMessage("nope")); got != st {
		t.Error("opening a missing id must return the same state")
	}
	if got := s.dispatch(types.CloseMessage("nope")); got != st {
		t.Error("closing a missing id must return the same state")
	}
}

// ─── Warning groups ──────────────────────────────────────────────────────────

func TestWarningGroup_SingleMemberStandalone(t *testing.T) {
	s := newStore(t)
	st := s.add(corsWarning("1", "w1"))

	wantVisible(t, st, "1")
	if st.Len() != 2 {
		t.Errorf("want header + member stored, got %d messages", st.Len())
	}
	header := "corsWarningGroup-w1"
	if diff := cmp.Diff(map[string][]string{header: {"1"}}, st.WarningGroupsByID()); diff != "" {
		t.Errorf("warning groups mismatch (-want +got):\n%s", diff)
	}
	m, _ := st.Message("1")
	if console.IsMessageInWarningGroup(m, st.VisibleMessages()) {
		t.Error("a single warning is not rendered inside a group")
	}
}

func TestWarningGroup_SecondMemberActivatesGroup(t *testing.T) {
	s := newStore(t)
	s.add(logMsg("0"), corsWarning("1", "w1"), logMsg("2"))
	st := s.add(corsWarning("3", "w1"))

	header := "corsWarningGroup-w1"
	if st.Len() != 5 {
		t.Errorf("want 5 stored messages, got %d", st.Len())
	}
	wantVisible(t, st, "0", header, "2")

	m, _ := st.Message("3")
	if !console.IsMessageInWarningGroup(m, st.VisibleMessages()) {
		t.Error("message 3 should be inside the visible warning group")
	}
	h, _ := st.Message(header)
	if h.Type != types.TypeCORSGroup || h.Level != types.LevelWarn || h.MessageText == nil {
		t.Errorf("unexpected header: %+v", h)
	}

	st = s.dispatch(types.OpenMessage(header))
	wantVisible(t, st, "0", header, "1", "3", "2")

	st = s.add(corsWarning("4", "w1"))
	wantVisible(t, st, "0", header, "1", "3", "4", "2")

	st = s.dispatch(types.CloseMessage(header))
	wantVisible(t, st, "0", header, "2")
}

func TestWarningGroup_TwoOriginalsOneHeader(t *testing.T) {
	s := newStore(t)
	st := s.add(corsWarning("1", "w1"), corsWarning("2", "w1"))
	if st.Len() != 3 {
		t.Fatalf("want 3 stored messages, got %d", st.Len())
	}
	wantVisible(t, st, "corsWarningGroup-w1")
}

func TestWarningGroup_PerWindow(t *testing.T) {
	s := newStore(t)
	st := s.add(corsWarning("1", "w1"), corsWarning("2", "w2"))
	wantVisible(t, st, "1", "2")
	if len(st.WarningGroupsByID()) != 2 {
		t.Errorf("want one warning group per window, got %v", st.WarningGroupsByID())
	}
}

func TestWarningGroup_HeaderPlacedBeforeOutermostGroup(t *testing.T) {
	s := newStore(t)
	st := s.add(typed("1", types.TypeStartGroup), corsWarning("2", "w"), corsWarning("3", "w"))

	header := "corsWarningGroup-w"
	wantVisible(t, st, header, "1")
	h, _ := st.Message(header)
	if h.GroupID != "" {
		t.Errorf("warning header must not attach to a console.group, got %q", h.GroupID)
	}
}

func TestWarningGroup_HiddenWhenWarnFilterOff(t *testing.T) {
	s := newStore(t)
	s.add(corsWarning("1", "w"), corsWarning("2", "w"))
	st := s.dispatch(types.ToggleFilter(types.FilterWarn))
	wantVisible(t, st)
}

func TestWarningGroup_IgnoresInfoLevel(t *testing.T) {
	m := corsWarning("1", "w")
	m.Level = types.LevelInfo
	if id := console.WarningGroupID(&m); id != "" {
		t.Errorf("info messages are never grouped, got %q", id)
	}
}

// ─── Logpoints ───────────────────────────────────────────────────────────────

func TestLogpoint_Supersession(t *testing.T) {
	s := newStore(t)
	a := atPoint(logMsg("1"), "10", 1)
	a.LogpointID = "lp"
	b := atPoint(logMsg("2"), "10", 1)
	b.LogpointID = "lp"

	st := s.add(a)
	st = s.add(b)
	if _, ok := st.Message("1"); ok {
		t.Error("superseded message 1 still stored")
	}
	wantVisible(t, st, "2")
	if id, ok := st.LogpointMessage("lp", "10"); !ok || id != "2" {
		t.Errorf("logpoint index: want 2, got %q (%v)", id, ok)
	}
}

func TestLogpoint_Tombstone(t *testing.T) {
	s := newStore(t)
	m := logMsg("1")
	m.LogpointID = "X"
	s.add(m, logMsg("2"))

	st := s.dispatch(types.ClearLogpoint("X"))
	wantVisible(t, st, "2")
	if !st.IsLogpointRemoved("X") {
		t.Error("logpoint X should be tombstoned")
	}

	again := logMsg("3")
	again.LogpointID = "X"
	st = s.add(again)
	if _, ok := st.Message("3"); ok {
		t.Error("message from a cleared logpoint must be dropped")
	}
	wantVisible(t, st, "2")
}

func TestRemove_RecomputesCurrentGroup(t *testing.T) {
	s := newStore(t)
	outer := typed("1", types.TypeStartGroup)
	inner := typed("2", types.TypeStartGroup)
	inner.LogpointID = "lp"
	st := s.add(outer, inner, logMsg("3"))
	if st.CurrentGroup() != "2" {
		t.Fatalf("current group: want 2, got %q", st.CurrentGroup())
	}

	st = s.dispatch(types.ClearLogpoint("lp"))
	if st.CurrentGroup() != "1" {
		t.Errorf("current group after removal: want 1, got %q", st.CurrentGroup())
	}
	if _, ok := st.GroupsByID()["2"]; ok {
		t.Error("removed group still in groupsById")
	}
}

func TestClearLogpoint_EmptyIDIsNoop(t *testing.T) {
	s := newStore(t)
	st := s.add(logMsg("1"), logMsg("2"), typed("3", types.TypeCommand))

	got := s.dispatch(types.Action{Type: types.ActionMessagesClearLogpoint})
	if got != st {
		t.Error("clearing an empty logpoint id must return the same state")
	}
	if got.Len() != 3 {
		t.Errorf("want 3 stored messages, got %d", got.Len())
	}
	wantVisible(t, got, "1", "2", "3")
	if got.IsLogpointRemoved("") {
		t.Error("the empty logpoint id must not be tombstoned")
	}
}

func TestRemove_PurgesWarningGroupAndLogpointIndex(t *testing.T) {
	s := newStore(t)
	first := atPoint(corsWarning("1", "w"), "10", 1)
	first.LogpointID = "lp"
	second := atPoint(corsWarning("2", "w"), "11", 1)
	st := s.add(first, second)

	header := "corsWarningGroup-w"
	if id, ok := st.LogpointMessage("lp", "10"); !ok || id != "1" {
		t.Fatalf("logpoint index before clear: want 1, got %q (%v)", id, ok)
	}

	st = s.dispatch(types.ClearLogpoint("lp"))
	if _, ok := st.Message("1"); ok {
		t.Fatal("message 1 still stored")
	}
	if diff := cmp.Diff(map[string][]string{header: {"2"}}, st.WarningGroupsByID()); diff != "" {
		t.Errorf("warning groups mismatch (-want +got):\n%s", diff)
	}
	if id, ok := st.LogpointMessage("lp", "10"); ok {
		t.Errorf("logpoint index still points at %q", id)
	}
}

// ─── Eviction ────────────────────────────────────────────────────────────────

func TestEviction_PurgesWarningGroupAndLogpointIndex(t *testing.T) {
	s := newStore(t, console.WithLogLimit(4))
	first := atPoint(corsWarning("1", "w"), "10", 1)
	first.LogpointID = "lp"
	s.add(first, atPoint(corsWarning("2", "w"), "11", 1))
	s.add(atPoint(logMsg("3"), "12", 1))

	// The header was inserted ahead of its first member, so it goes first.
	st := s.add(atPoint(logMsg("4"), "13", 1))
	header := "corsWarningGroup-w"
	if _, ok := st.Message(header); ok {
		t.Fatal("header should have been evicted")
	}
	if _, ok := st.WarningGroupsByID()[header]; ok {
		t.Error("evicted header still in warningGroupsById")
	}

	st = s.add(atPoint(logMsg("5"), "14", 1))
	if _, ok := st.Message("1"); ok {
		t.Fatal("message 1 should have been evicted")
	}
	for id, members := range st.WarningGroupsByID() {
		if id == "1" || slices.Contains(members, "1") {
			t.Errorf("warning group %s still references evicted message 1: %v", id, members)
		}
	}
	if id, ok := st.LogpointMessage("lp", "10"); ok {
		t.Errorf("logpoint index still points at evicted %q", id)
	}
	if st.TopLevelCount() != 4 {
		t.Errorf("want 4 top-level messages, got %d", st.TopLevelCount())
	}
}

func TestEviction_SingleBatch(t *testing.T) {
	s := newStore(t)
	msgs := make([]types.Message, 0, 1001)
	for i := 1; i <= 1001; i++ {
		msgs = append(msgs, logMsg(strconv.Itoa(i)))
	}
	st := s.add(msgs...)

	if st.Len() != 1000 {
		t.Fatalf("want 1000 messages, got %d", st.Len())
	}
	if _, ok := st.Message("1"); ok {
		t.Error("oldest message should have been dropped")
	}
	vis := st.VisibleMessages()
	if vis[0] != "2" || vis[len(vis)-1] != "1001" {
		t.Errorf("want 2..1001, got %s..%s", vis[0], vis[len(vis)-1])
	}
}

func TestEviction_AcrossBatches(t *testing.T) {
	s := newStore(t, console.WithLogLimit(3))
	s.add(logMsg("1"), logMsg("2"), logMsg("3"))
	st := s.add(logMsg("4"))
	wantVisible(t, st, "2", "3", "4")
	if st.TopLevelCount() > 3 {
		t.Errorf("top-level count %d exceeds limit", st.TopLevelCount())
	}
}

func TestEviction_CleansWholeGroup(t *testing.T) {
	s := newStore(t, console.WithLogLimit(3))
	s.add(typed("1", types.TypeStartGroup))
	s.add(logMsg("2"))
	s.add(logMsg("3"))
	s.add(typed("e", types.TypeEndGroup))
	s.add(logMsg("4"))
	s.add(logMsg("5"))
	st := s.add(logMsg("6"))

	wantVisible(t, st, "4", "5", "6")
	if len(st.GroupsByID()) != 0 {
		t.Errorf("evicted group still indexed: %v", st.GroupsByID())
	}
}

func TestEviction_GroupedMessagesDoNotCount(t *testing.T) {
	s := newStore(t, console.WithLogLimit(3))
	s.add(typed("1", types.TypeStartGroup))
	for i := 2; i <= 10; i++ {
		s.add(logMsg(strconv.Itoa(i)))
	}
	st := s.add(typed("e", types.TypeEndGroup), logMsg("11"))
	if st.Len() != 11 {
		t.Errorf("grouped messages must not be evicted, got %d messages", st.Len())
	}
}

// ─── Execution order ─────────────────────────────────────────────────────────

func TestOrder_GenuinePoints(t *testing.T) {
	s := newStore(t)
	st := s.add(
		atPoint(logMsg("1"), "20", 2),
		atPoint(logMsg("2"), "3", 1),
		atPoint(logMsg("3"), "100", 3),
	)
	wantVisible(t, st, "2", "1", "3")
	if !st.HasExecutionPoints() {
		t.Error("hasExecutionPoints should be set")
	}
}

func TestOrder_PausedSynthesis(t *testing.T) {
	s := newStore(t)
	s.add(atPoint(logMsg("1"), "20", 2), atPoint(logMsg("2"), "3", 1))
	s.dispatch(types.SetPausedPoint("5", 1.5))
	st := s.add(typed("3", types.TypeCommand), typed("4", types.TypeResult))

	wantVisible(t, st, "2", "3", "4", "1")
	m3, _ := st.Message("3")
	m4, _ := st.Message("4")
	if m3.LastExecutionPoint == nil || m3.LastExecutionPoint.Point != "5" || m3.LastExecutionPoint.MessageCount != 1 {
		t.Errorf("message 3: unexpected ordering key %+v", m3.LastExecutionPoint)
	}
	if m4.LastExecutionPoint.MessageCount != 2 {
		t.Errorf("message 4: want count 2, got %d", m4.LastExecutionPoint.MessageCount)
	}
}

func TestOrder_TrailingMessageInheritsPoint(t *testing.T) {
	s := newStore(t)
	st := s.add(atPoint(logMsg("1"), "7", 1), logMsg("2"), logMsg("3"))

	m2, _ := st.Message("2")
	m3, _ := st.Message("3")
	if m2.LastExecutionPoint.Point != "7" || m2.LastExecutionPoint.MessageCount != 0 {
		t.Errorf("message 2: want (7, 0), got %+v", m2.LastExecutionPoint)
	}
	if m3.LastExecutionPoint.Point != "7" || m3.LastExecutionPoint.MessageCount != 1 {
		t.Errorf("message 3: want (7, 1), got %+v", m3.LastExecutionPoint)
	}
	wantVisible(t, st, "1", "2", "3")
}

func TestOrder_EmptyStoreStartsAtZero(t *testing.T) {
	s := newStore(t)
	st := s.add(logMsg("1"))
	m, _ := st.Message("1")
	if diff := cmp.Diff(&types.LastExecutionPoint{Point: "0", MessageCount: 1}, m.LastExecutionPoint); diff != "" {
		t.Errorf("ordering key mismatch (-want +got):\n%s", diff)
	}
}

func TestOrder_CustomComparator(t *testing.T) {
	reverse := func(a, b string) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	}
	s := newStore(t, console.WithComparator(reverse))
	st := s.add(atPoint(logMsg("1"), "a", 1), atPoint(logMsg("2"), "b", 1))
	wantVisible(t, st, "2", "1")
}

func TestOrder_MissingTimeIsInvariantViolation(t *testing.T) {
	r := console.NewReducer()
	before := console.NewState()
	m := logMsg("1")
	m.ExecutionPoint = "5"

	after, err := r.Reduce(before, types.AddMessages(logMsg("0"), m), filters.Default())
	if !errors.Is(err, console.ErrInvariant) {
		t.Fatalf("want ErrInvariant, got %v", err)
	}
	if after != before || before.Len() != 0 {
		t.Error("state must be left unchanged on invariant violation")
	}
}

// ─── Clearing ────────────────────────────────────────────────────────────────

func TestClear(t *testing.T) {
	s := newStore(t)
	s.add(typed("1", types.TypeStartGroup), logMsg("2"))
	st := s.dispatch(types.ClearMessages())
	if st.Len() != 0 || len(st.VisibleMessages()) != 0 || st.CurrentGroup() != "" {
		t.Errorf("clear left state behind: len=%d group=%q", st.Len(), st.CurrentGroup())
	}
}

func TestClearEvaluations(t *testing.T) {
	s := newStore(t)
	st := s.add(typed("1", types.TypeCommand), typed("2", types.TypeResult), logMsg("3"))
	st = s.dispatch(types.ClearEvaluations())
	wantVisible(t, st, "3")

	if again := s.dispatch(types.ClearEvaluations()); again != st {
		t.Error("clearing with no evaluations must return the same state")
	}
}

func TestClearEvaluation(t *testing.T) {
	s := newStore(t)
	s.add(
		typed("1", types.TypeCommand), typed("2", types.TypeResult),
		typed("3", types.TypeCommand), logMsg("4"),
	)
	st := s.dispatch(types.ClearEvaluation("1"))
	wantVisible(t, st, "3", "4")

	// The next id is not a result, so it stays.
	st = s.dispatch(types.ClearEvaluation("3"))
	wantVisible(t, st, "4")
}

// ─── Filters ─────────────────────────────────────────────────────────────────

func TestFilters_LevelToggleCounts(t *testing.T) {
	s := newStore(t)
	warn := logMsg("2")
	warn.Level = types.LevelWarn
	s.add(logMsg("1"), warn, logMsg("3"))

	st := s.dispatch(types.ToggleFilter(types.FilterLog))
	wantVisible(t, st, "2")
	fc := st.FilteredMessagesCount()
	if fc[console.Global] != 2 || fc[types.FilterLog] != 2 {
		t.Errorf("filtered count: want global=2 log=2, got %v", fc)
	}

	st = s.add(logMsg("4"))
	if got := st.FilteredMessagesCount()[types.FilterLog]; got != 3 {
		t.Errorf("ingest while filtered: want log=3, got %d", got)
	}

	st = s.dispatch(types.ToggleFilter(types.FilterLog))
	wantVisible(t, st, "1", "2", "3", "4")
	if got := st.FilteredMessagesCount()[console.Global]; got != 0 {
		t.Errorf("filtered count after re-enabling: want 0, got %d", got)
	}
}

func TestFilters_CountsFollowRemoval(t *testing.T) {
	s := newStore(t, console.WithLogLimit(2))
	s.dispatch(types.ToggleFilter(types.FilterLog))
	warn := logMsg("3")
	warn.Level = types.LevelWarn
	st := s.add(logMsg("1"), logMsg("2"), warn)

	// "1" was pruned from the batch before ingest; "2" is hidden and kept.
	if got := st.FilteredMessagesCount()[types.FilterLog]; got != 1 {
		t.Fatalf("want log=1, got %d", got)
	}

	st = s.add(logMsg("4"))
	fc := st.FilteredMessagesCount()
	if fc[types.FilterLog] != 1 || fc[console.Global] != 1 {
		t.Errorf("evicting a hidden message must drop its count, got %v", fc)
	}
}

func TestFilters_CountsFollowRemovalFromClosedGroup(t *testing.T) {
	s := newStore(t)
	s.dispatch(types.ToggleFilter(types.FilterLog))
	lp := logMsg("2")
	lp.LogpointID = "lp"
	st := s.add(typed("1", types.TypeStartGroup), lp)
	if fc := st.FilteredMessagesCount(); fc[types.FilterLog] != 1 || fc[console.Global] != 1 {
		t.Fatalf("want log=1 global=1 after ingest, got %v", fc)
	}

	// Closing the group changes why message 2 is hidden, not what it was
	// counted under.
	s.dispatch(types.CloseMessage("1"))
	st = s.dispatch(types.ClearLogpoint("lp"))

	if st.Len() != 1 {
		t.Fatalf("want only the group left, got %d messages", st.Len())
	}
	fc := st.FilteredMessagesCount()
	if fc[types.FilterLog] != 0 || fc[console.Global] != 0 {
		t.Errorf("removed message still counted: %v", fc)
	}
}

func TestFilters_TextSearch(t *testing.T) {
	s := newStore(t)
	hello := logMsg("1")
	hello.Parameters = []types.Value{{Kind: types.ValuePrimitive, Primitive: "Hello world"}}
	obj := logMsg("2")
	obj.Parameters = []types.Value{{Kind: types.ValueObject, ClassName: "Object", PreviewItems: []types.Value{
		{Kind: types.ValuePrimitive, Primitive: float64(42)},
	}}}
	framed := logMsg("3")
	framed.Frame = &types.Frame{Source: "https://example.com/js/app%20main.js?v=1", Line: 10, Column: 4, FunctionName: "boot"}
	s.add(hello, obj, framed, typed("4", types.TypeCommand))

	cases := []struct {
		text string
		want []string
	}{
		{"hello", []string{"1", "4"}},
		{"42", []string{"2", "4"}},
		{"app main.js:10", []string{"3", "4"}},
		{"boot", []string{"3", "4"}},
		{"-hello", []string{"2", "3", "4"}},
		{"/^hel+o/", []string{"1", "4"}},
		{"", []string{"1", "2", "3", "4"}},
	}
	for _, tc := range cases {
		st := s.dispatch(types.SetFilterText(tc.text))
		if diff := cmp.Diff(tc.want, st.VisibleMessages()); diff != "" {
			t.Errorf("search %q (-want +got):\n%s", tc.text, diff)
		}
	}
}

func TestFilters_NodeModules(t *testing.T) {
	s := newStore(t)
	m := logMsg("1")
	m.Frame = &types.Frame{Source: "/app/node_modules/lib/index.js", Line: 1, Column: 1}
	s.add(m, logMsg("2"))

	st := s.dispatch(types.ToggleFilter(types.FilterNodeModules))
	wantVisible(t, st, "2")
	if got := st.FilteredMessagesCount()[types.FilterNodeModules]; got != 1 {
		t.Errorf("nodemodules count: want 1, got %d", got)
	}
}

func TestFilters_StructuralTypesAlwaysVisible(t *testing.T) {
	s := newStore(t)
	s.add(typed("1", types.TypeCommand), typed("2", types.TypeNavigationMarker), logMsg("3"))
	st := s.dispatch(types.SetFilterText("nothing matches this"))
	wantVisible(t, st, "1", "2")
}

// ─── Misc actions ────────────────────────────────────────────────────────────

func TestUpdatePayload(t *testing.T) {
	s := newStore(t)
	st := s.add(logMsg("1"))
	if got := s.dispatch(types.UpdatePayload("missing", []byte(`{}`))); got != st {
		t.Error("payload for a missing message must be ignored")
	}
	st = s.dispatch(types.UpdatePayload("1", []byte(`{"status":200}`)))
	p, ok := st.Payload("1")
	if !ok || string(p) != `{"status":200}` {
		t.Errorf("payload: got %s (%v)", p, ok)
	}
}

func TestPausedPoint_SameValueKeepsState(t *testing.T) {
	s := newStore(t)
	st := s.dispatch(types.SetPausedPoint("5", 1))
	if got := s.dispatch(types.SetPausedPoint("5", 1)); got != st {
		t.Error("setting the same paused point must return the same state")
	}
	if p, tm := st.PausedExecutionPoint(); p != "5" || tm != 1 {
		t.Errorf("paused point: got %q at %v", p, tm)
	}
}

func TestUnknownActionIsNoop(t *testing.T) {
	s := newStore(t)
	st := s.add(logMsg("1"))
	if got := s.dispatch(types.Action{Type: "SOMETHING_NEW"}); got != st {
		t.Error("unknown action must return the same state")
	}
}

func TestSnapshotsAreImmutable(t *testing.T) {
	s := newStore(t)
	first := s.add(logMsg("1"))
	s.add(logMsg("2"))
	s.dispatch(types.ToggleFilter(types.FilterLog))

	wantVisible(t, first, "1")
	if first.Len() != 1 {
		t.Errorf("earlier snapshot changed: len=%d", first.Len())
	}

	m, _ := first.Message("1")
	m.MessageText.Text = "mutated"
	again, _ := first.Message("1")
	if again.MessageText.Text != "message 1" {
		t.Error("Message must return a copy")
	}
}

func TestLastMessageID(t *testing.T) {
	s := newStore(t)
	st := s.add(logMsg("1"), logMsg("2"))
	if st.LastMessageID() != "2" {
		t.Errorf("want 2, got %q", st.LastMessageID())
	}
}

func TestNullMessageIgnored(t *testing.T) {
	s := newStore(t)
	st := s.add(typed("1", types.TypeNull))
	if st.Len() != 0 {
		t.Errorf("null message stored")
	}
}
