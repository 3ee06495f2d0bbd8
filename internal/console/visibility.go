package console

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/snehjoshi/replayconsole/internal/filters"
	"github.com/snehjoshi/replayconsole/internal/types"
)

// Cause explains why a message is visible or hidden.
type Cause string

const (
	CauseNone                        Cause = ""
	CauseClosedGroup                 Cause = "closedGroup"
	CauseWarningGroupHeuristicNotMet Cause = "warningGroupHeuristicNotMet"
	CauseVisibleChild                Cause = "visibleChild"
	CauseClosedWarningGroup          Cause = "closedWarningGroup"
	CauseVisibleWarningGroup         Cause = "visibleWarningGroup"
	CauseText                        Cause = types.FilterText
	CauseNodeModules                 Cause = types.FilterNodeModules
)

// Result is the outcome of a visibility evaluation. Hidden messages whose
// Cause is a filter name are counted in FilteredMessagesCount.
type Result struct {
	Visible bool
	Cause   Cause
}

// VisibilityOptions disables parts of the evaluation. The zero value runs
// every rule.
type VisibilityOptions struct {
	// SkipGroupCheck ignores whether the enclosing console.groups are open.
	SkipGroupCheck bool
	// SkipParentWarningGroup does not let a visible warning-group header make
	// its members visible.
	SkipParentWarningGroup bool
}

// Visibility decides whether m is shown in state s under filters fs. It
// depends only on its arguments.
func Visibility(m *types.Message, s *State, fs types.Filters, opts VisibilityOptions) Result {
	return newEvaluator(s, fs).visibility(m, !opts.SkipGroupCheck, !opts.SkipParentWarningGroup, 0)
}

// maxVisibilityDepth bounds the header/member recursion: a member asks its
// header, the header asks its members, and members never ask again.
const maxVisibilityDepth = 2

type evaluator struct {
	s       *State
	filters types.Filters
	search  *filters.Matcher
	// deepest is the largest recursion depth reached so far.
	deepest int
}

func newEvaluator(s *State, fs types.Filters) *evaluator {
	return &evaluator{s: s, filters: fs, search: filters.NewMatcher(fs.Text)}
}

func (e *evaluator) visibility(m *types.Message, checkGroup, checkParent bool, depth int) Result {
	if depth > maxVisibilityDepth {
		panic(fmt.Sprintf("console: visibility recursion deeper than %d for message %s", maxVisibilityDepth, m.ID))
	}
	e.deepest = max(e.deepest, depth)
	s := e.s
	parentID := WarningGroupID(m)
	parent := s.messages[parentID]

	if checkGroup && !s.inOpenedGroup(m) && !s.shouldGroupWarnings(parent) {
		return Result{Cause: CauseClosedGroup}
	}

	if m.Type.IsWarningGroup() {
		if !s.shouldGroupWarnings(m) {
			return Result{Cause: CauseWarningGroupHeuristicNotMet}
		}
		if !e.filters.Warn {
			return Result{}
		}
		for _, id := range s.warningGroups[m.ID] {
			child, ok := s.messages[id]
			if !ok {
				continue
			}
			if r := e.visibility(child, true, false, depth+1); r.Visible && r.Cause != CauseVisibleWarningGroup {
				return Result{Visible: true, Cause: CauseVisibleChild}
			}
		}
	}

	if parent != nil && s.shouldGroupWarnings(parent) && !s.isOpen(parentID) {
		return Result{Cause: CauseClosedWarningGroup}
	}

	if parent != nil && checkParent {
		if r := e.visibility(parent, checkGroup, checkParent, depth+1); r.Visible && r.Cause != CauseVisibleChild {
			return Result{Visible: true, Cause: CauseVisibleWarningGroup}
		}
	}

	if isUnfilterable(m) {
		return Result{Visible: true}
	}

	if (m.Source == types.SourceConsoleAPI || m.Source == types.SourceJavaScript) &&
		!filters.LevelEnabled(e.filters, m.Level) {
		return Result{Cause: Cause(m.Level)}
	}

	if m.Frame != nil && strings.Contains(m.Frame.Source, "node_modules") && !e.filters.NodeModules {
		return Result{Cause: CauseNodeModules}
	}

	if !e.search.Pass(e.search.Active() && e.matches(m)) {
		return Result{Cause: CauseText}
	}
	return Result{Visible: true}
}

func isUnfilterable(m *types.Message) bool {
	switch m.Type {
	case types.TypeCommand, types.TypeResult, types.TypeStartGroup,
		types.TypeStartGroupCollapsed, types.TypeNavigationMarker:
		return true
	}
	return false
}

// ─── Search ───────────────────────────────────────────────────────────────────

// matches reports whether any searchable part of m contains the search term.
func (e *evaluator) matches(m *types.Message) bool {
	match := e.search.Match
	for _, p := range m.Parameters {
		if matchValue(p, match) {
			return true
		}
	}
	if m.Frame != nil && match(frameText(m.Frame)) {
		return true
	}
	if m.Request != nil && (match(m.Request.Method) || match(m.Request.URL)) {
		return true
	}
	for _, f := range m.Stacktrace {
		if match(stackFrameText(f)) {
			return true
		}
	}
	if t := m.MessageText; t != nil && (t.IsGrip() || match(t.Text)) {
		return true
	}
	for _, n := range m.Notes {
		if n.Frame != nil {
			if match(frameText(n.Frame)) {
				return true
			}
		} else if match(n.MessageBody) {
			return true
		}
	}
	return m.Prefix != "" && match(m.Prefix+": ")
}

func matchValue(v types.Value, match func(string) bool) bool {
	switch v.Kind {
	case types.ValuePrimitive:
		return match(primitiveText(v.Primitive))
	case types.ValueObject:
		if match(v.ClassName) {
			return true
		}
		for _, it := range v.PreviewItems {
			if matchValue(it, match) {
				return true
			}
		}
	}
	return false
}

func primitiveText(p any) string {
	switch v := p.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprint(p)
}

// frameText renders a location the way it is displayed:
// "fn file.js:line:column".
func frameText(f *types.Frame) string {
	var sb strings.Builder
	if f.FunctionName != "" {
		sb.WriteString(f.FunctionName)
		sb.WriteByte(' ')
	}
	fmt.Fprintf(&sb, "%s:%d:%d", shortSourceName(f.Source), f.Line, f.Column)
	return sb.String()
}

func stackFrameText(f types.StackFrame) string {
	fn := f.FunctionName
	if fn == "" {
		fn = "<anonymous>"
	}
	return fmt.Sprintf("%s %s:%d:%d", fn, shortSourceName(f.Filename), f.LineNumber, f.ColumnNumber)
}

// shortSourceName returns the unescaped last path segment of a source URL.
func shortSourceName(source string) string {
	s := source
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return source
	}
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}
