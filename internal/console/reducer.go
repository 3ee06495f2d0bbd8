package console

import (
	"log/slog"
	"slices"
	"strconv"

	"github.com/snehjoshi/replayconsole/internal/filters"
	"github.com/snehjoshi/replayconsole/internal/point"
	"github.com/snehjoshi/replayconsole/internal/types"
)

// DefaultLogLimit is the number of top-level messages kept before the oldest
// are evicted.
const DefaultLogLimit = 1000

// Reducer applies actions to State snapshots. A Reducer holds only
// configuration and is safe for concurrent use; callers serialise dispatches
// on the same state lineage themselves.
type Reducer struct {
	logLimit      int
	groupWarnings bool
	compare       point.Comparator
	logger        *slog.Logger
}

// Option is a functional option for NewReducer.
type Option func(*Reducer)

// WithLogLimit sets the top-level message limit. Values below 1 are ignored.
func WithLogLimit(n int) Option {
	return func(r *Reducer) {
		if n > 0 {
			r.logLimit = n
		}
	}
}

// WithGroupWarnings enables the warning-group interleave sort on full
// re-projection.
func WithGroupWarnings(on bool) Option {
	return func(r *Reducer) { r.groupWarnings = on }
}

// WithComparator replaces the execution point comparator.
func WithComparator(c point.Comparator) Option {
	return func(r *Reducer) {
		if c != nil {
			r.compare = c
		}
	}
}

// WithLogger sets the sink for debug trace events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reducer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReducer returns a Reducer with the given options applied.
func NewReducer(opts ...Option) *Reducer {
	r := &Reducer{
		logLimit: DefaultLogLimit,
		compare:  point.Compare,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// LogLimit returns the configured top-level message limit.
func (r *Reducer) LogLimit() int { return r.logLimit }

// Reduce returns the state that results from applying a to s. fs must be the
// filter value after the same action went through filters.Reduce.
//
// When nothing changes the same *State is returned. On error s is returned
// unchanged.
func (r *Reducer) Reduce(s *State, a types.Action, fs types.Filters) (*State, error) {
	if s == nil {
		s = NewState()
	}
	r.logger.Debug("webconsole action", "type", string(a.Type))

	switch a.Type {
	case types.ActionMessagesAdd:
		b := r.edit(s, fs)
		for _, m := range r.prune(a.Messages) {
			if err := b.addMessage(m); err != nil {
				return s, err
			}
		}
		b.limitTopLevelMessageCount()
		return b.commit(), nil

	case types.ActionMessagesClear:
		return NewState(), nil

	case types.ActionMessagesClearEvaluations:
		var ids []string
		for _, id := range s.order {
			if t := s.messages[id].Type; t == types.TypeCommand || t == types.TypeResult {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return s, nil
		}
		b := r.edit(s, fs)
		b.remove(ids)
		return b.commit(), nil

	case types.ActionMessagesClearEvaluation:
		ids := evaluationIDs(s, a.ID)
		if len(ids) == 0 {
			return s, nil
		}
		b := r.edit(s, fs)
		b.remove(ids)
		return b.commit(), nil

	case types.ActionMessagesClearLogpoint:
		if a.LogpointID == "" {
			return s, nil
		}
		b := r.edit(s, fs)
		var ids []string
		for _, id := range s.order {
			if s.messages[id].LogpointID == a.LogpointID {
				ids = append(ids, id)
			}
		}
		b.s.removedLogpoints[a.LogpointID] = struct{}{}
		b.remove(ids)
		return b.commit(), nil

	case types.ActionMessageOpen:
		if _, ok := s.messages[a.ID]; !ok {
			return s, nil
		}
		b := r.edit(s, fs)
		b.open(a.ID)
		return b.commit(), nil

	case types.ActionMessageClose:
		if _, ok := s.messages[a.ID]; !ok {
			return s, nil
		}
		b := r.edit(s, fs)
		b.close(a.ID)
		return b.commit(), nil

	case types.ActionMessageUpdatePayload:
		if _, ok := s.messages[a.ID]; !ok {
			return s, nil
		}
		b := r.edit(s, fs)
		b.s.payloads[a.ID] = slices.Clone(a.Data)
		return b.commit(), nil

	case types.ActionPausedExecutionPoint:
		if s.pausedPoint == a.ExecutionPoint && s.pausedTime == a.Time {
			return s, nil
		}
		b := r.edit(s, fs)
		b.s.pausedPoint = a.ExecutionPoint
		b.s.pausedTime = a.Time
		return b.commit(), nil
	}

	if a.Type.IsFilterChange() {
		b := r.edit(s, fs)
		b.setVisibleMessages()
		return b.commit(), nil
	}
	return s, nil
}

// prune drops the oldest messages of a batch that would be evicted anyway.
// Only messages outside any group that neither open nor close one count
// toward the limit.
func (r *Reducer) prune(msgs []types.Message) []types.Message {
	count := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		m := &msgs[i]
		if m.GroupID != "" || m.Type.IsGroupStart() || m.Type == types.TypeEndGroup {
			continue
		}
		count++
		if count > r.logLimit {
			return msgs[i+1:]
		}
	}
	return msgs
}

// evaluationIDs returns the command id and, when the next id is its result,
// the result id.
func evaluationIDs(s *State, commandID string) []string {
	var ids []string
	if _, ok := s.messages[commandID]; ok {
		ids = append(ids, commandID)
	}
	n, err := strconv.ParseUint(commandID, 10, 64)
	if err != nil {
		return ids
	}
	next := strconv.FormatUint(n+1, 10)
	if m, ok := s.messages[next]; ok && m.Type == types.TypeResult {
		ids = append(ids, next)
	}
	return ids
}

// ─── Builder ──────────────────────────────────────────────────────────────────

// builder is the working copy of one dispatch. It is discarded on error.
type builder struct {
	r       *Reducer
	s       *State
	filters types.Filters
	eval    *evaluator
}

func (r *Reducer) edit(s *State, fs types.Filters) *builder {
	next := s.clone()
	return &builder{
		r:       r,
		s:       next,
		filters: fs,
		eval:    newEvaluator(next, fs),
	}
}

func (b *builder) commit() *State {
	s := b.s
	b.s, b.eval = nil, nil
	return s
}

func (b *builder) visibility(m *types.Message) Result {
	return b.eval.visibility(m, true, true, 0)
}

// setVisibleMessages recomputes the whole projection and the filtered counts
// from scratch.
func (b *builder) setVisibleMessages() {
	s := b.s
	visible := make([]string, 0, len(s.order))
	s.filtered = newFilteredCount()
	s.hiddenBy = make(map[string]Cause)
	for _, id := range s.order {
		res := b.visibility(s.messages[id])
		if res.Visible {
			visible = append(visible, id)
			continue
		}
		b.countHidden(id, res.Cause)
	}
	s.visible = visible
	b.sortVisible(b.r.groupWarnings)
}

// countHidden adds id to the filtered counts when cause is a filter. The cause
// is kept with the id so removal takes it out of the same counter.
func (b *builder) countHidden(id string, cause Cause) {
	s := b.s
	b.uncountHidden(id)
	if !filters.IsCounted(string(cause)) {
		return
	}
	s.hiddenBy[id] = cause
	s.filtered[string(cause)]++
	s.filtered[Global]++
}

func (b *builder) uncountHidden(id string) {
	s := b.s
	cause, ok := s.hiddenBy[id]
	if !ok {
		return
	}
	delete(s.hiddenBy, id)
	s.filtered[string(cause)] = max(s.filtered[string(cause)]-1, 0)
	s.filtered[Global] = max(s.filtered[Global]-1, 0)
}
